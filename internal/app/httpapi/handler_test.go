package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"

	"github.com/filmbay/rental-service/internal/app"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/middleware"
	"github.com/filmbay/rental-service/pkg/logger"
)

type testAPI struct {
	t      *testing.T
	server http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logger.NewDefault("httpapi-test")

	application, err := app.New(app.Stores{}, log, app.WithAdminAllowlist([]string{"root"}))
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}

	issuer := auth.NewIssuer("test-secret", time.Hour)

	router := mux.NewRouter()
	NewHandler(application, issuer, log).Register(router)

	authMW := middleware.NewAuthMiddleware(issuer, log, []string{"/metrics", "/v1/system/health"})
	return &testAPI{t: t, server: authMW.Handler(router)}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(username string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/users", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "supersecret",
	})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s: expected 201, got %d: %s", username, rec.Code, rec.Body)
	}
}

func (a *testAPI) token(username string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/token", "", map[string]string{
		"username": username,
		"password": "supersecret",
	})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("token %s: expected 200, got %d: %s", username, rec.Code, rec.Body)
	}
	return gjson.GetBytes(rec.Body.Bytes(), "access_token").String()
}

func TestUserLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.register("root")
	api.register("alice")
	adminToken := api.token("root")
	aliceToken := api.token("alice")

	t.Run("RegisterHidesPassword", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/v1/users", "", map[string]string{
			"username": "bob", "email": "bob@example.com", "password": "supersecret",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
			t.Errorf("password material leaked: %s", rec.Body)
		}
	})

	t.Run("GetSelf", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/v1/users/2", aliceToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("GetOtherUserHidden", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/v1/users/1", aliceToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("GetWithoutToken", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/v1/users/2", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("RolePatchAdminOnly", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/v1/users/2/role", aliceToken, map[string]string{"value": "admin"})
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}

		rec = api.do(http.MethodPatch, "/v1/users/2/role", adminToken, map[string]string{"value": "admin"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if role := gjson.GetBytes(rec.Body.Bytes(), "role").String(); role != "admin" {
			t.Errorf("expected role admin, got %s", role)
		}
	})
}

func TestMovieAndOrderFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register("root")
	api.register("alice")
	adminToken := api.token("root")
	aliceToken := api.token("alice")

	var movieID int64

	t.Run("CreateMovie", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/v1/movies", aliceToken, map[string]interface{}{
			"title": "Alien", "stock": 2, "rental_price": 5.0, "sale_price": 20.0, "availability": true,
		})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("customer create should be 403, got %d", rec.Code)
		}

		rec = api.do(http.MethodPost, "/v1/movies", adminToken, map[string]interface{}{
			"title": "Alien", "stock": 2, "rental_price": 5.0, "sale_price": 20.0, "availability": true,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}
		movieID = gjson.GetBytes(rec.Body.Bytes(), "id").Int()
	})

	t.Run("ListPublic", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/v1/movies?sort=title&order=asc", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if count := gjson.GetBytes(rec.Body.Bytes(), "count").Int(); count != 1 {
			t.Errorf("expected 1 movie, got %d", count)
		}
	})

	t.Run("PatchField", func(t *testing.T) {
		rec := api.do(http.MethodPatch, fmt.Sprintf("/v1/movies/%d", movieID), adminToken,
			map[string]string{"field_name": "stock", "value": "5"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if stock := gjson.GetBytes(rec.Body.Bytes(), "stock").Int(); stock != 5 {
			t.Errorf("expected stock 5, got %d", stock)
		}

		rec = api.do(http.MethodPatch, fmt.Sprintf("/v1/movies/%d", movieID), adminToken,
			map[string]string{"field_name": "created_at", "value": "now"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("non-whitelisted field should be 400, got %d", rec.Code)
		}
	})

	var orderID int64

	t.Run("PlaceRental", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/v1/orders", aliceToken,
			map[string]interface{}{"movie_id": movieID, "order_type": "rental"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}
		body := rec.Body.Bytes()
		orderID = gjson.GetBytes(body, "id").Int()
		if price := gjson.GetBytes(body, "price_paid").Float(); price != 5.0 {
			t.Errorf("price must come from the catalog, got %.2f", price)
		}
		if gjson.GetBytes(body, "expected_return_date").String() == "" {
			t.Error("rental must carry an expected return date")
		}
	})

	t.Run("OrderHistory", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/v1/orders", aliceToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if count := gjson.GetBytes(rec.Body.Bytes(), "count").Int(); count != 1 {
			t.Errorf("expected 1 order, got %d", count)
		}
	})

	t.Run("ReturnRental", func(t *testing.T) {
		rec := api.do(http.MethodPatch, fmt.Sprintf("/v1/orders/%d", orderID), aliceToken,
			map[string]string{"returned_date": time.Now().UTC().Format("2006-01-02")})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		if penalty := gjson.GetBytes(rec.Body.Bytes(), "delay_penalty_paid").Float(); penalty != 0 {
			t.Errorf("on-time return should carry no penalty, got %.2f", penalty)
		}
	})

	t.Run("Interaction", func(t *testing.T) {
		rec := api.do(http.MethodPost, fmt.Sprintf("/v1/movies/%d/interaction", movieID), aliceToken,
			map[string]string{"type": "like"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
		}

		rec = api.do(http.MethodPost, fmt.Sprintf("/v1/movies/%d/interaction", movieID), aliceToken,
			map[string]string{"type": "love"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("invalid type should be 400, got %d", rec.Code)
		}

		rec = api.do(http.MethodPost, "/v1/movies/999/interaction", aliceToken,
			map[string]string{"type": "like"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("unknown movie should be 404, got %d", rec.Code)
		}
	})

	t.Run("DeleteReferencedSoftDisables", func(t *testing.T) {
		rec := api.do(http.MethodDelete, fmt.Sprintf("/v1/movies/%d", movieID), adminToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		message := gjson.GetBytes(rec.Body.Bytes(), "message").String()
		if message == "movie deleted" {
			t.Error("referenced movie should be soft disabled, not deleted")
		}

		rec = api.do(http.MethodGet, fmt.Sprintf("/v1/movies/%d", movieID), "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("movie should still exist, got %d", rec.Code)
		}
		if gjson.GetBytes(rec.Body.Bytes(), "availability").Bool() {
			t.Error("movie should be flagged unavailable")
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/v1/system/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if status := gjson.GetBytes(rec.Body.Bytes(), "status").String(); status != "healthy" {
		t.Errorf("expected healthy, got %q", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/v1/users", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "supersecret", "role": "admin",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown body fields should be rejected, got %d", rec.Code)
	}
}
