package auth

import (
	"testing"
	"time"

	"github.com/filmbay/rental-service/internal/app/domain/user"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	u := user.User{ID: 42, Username: "alice", Role: user.RoleAdmin}
	token, expiresAt, err := issuer.Issue(u)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a signed token")
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("token should expire in the future")
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}

	caller := CallerFromClaims(claims)
	if caller.ID != 42 || !caller.IsAdmin() {
		t.Errorf("unexpected caller %+v", caller)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	other := NewIssuer("other-secret", time.Hour)

	token, _, err := issuer.Issue(user.User{ID: 1, Username: "alice", Role: user.RoleCustomer})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Error("token signed with a different secret must not verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Nanosecond)

	token, _, err := issuer.Issue(user.User{ID: 1, Username: "alice", Role: user.RoleCustomer})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := issuer.Verify(token); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	if _, err := issuer.Verify("not.a.token"); err == nil {
		t.Error("garbage must not verify")
	}
}

func TestCallerFromClaimsUnknownRole(t *testing.T) {
	caller := CallerFromClaims(&Claims{UserID: 5, Role: "wizard"})
	if caller.IsAdmin() {
		t.Error("unknown roles must not grant admin")
	}
	if caller.Role != user.RoleCustomer {
		t.Errorf("unknown role should fall back to customer, got %s", caller.Role)
	}
}
