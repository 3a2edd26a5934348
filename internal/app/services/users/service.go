package users

import (
	"context"
	stderrors "errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/filmbay/rental-service/internal/app/domain/user"
	"github.com/filmbay/rental-service/internal/app/storage"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/errors"
	"github.com/filmbay/rental-service/pkg/logger"
)

// Service manages user registration, lookup and role assignment.
type Service struct {
	store          storage.UserStore
	log            *logger.Logger
	adminAllowlist map[string]struct{}
}

// Option customises service construction.
type Option func(*Service)

// WithAdminAllowlist elevates the named usernames to the admin role at
// registration time. This bootstraps the first administrator without a
// seeded password in the init scripts.
func WithAdminAllowlist(usernames []string) Option {
	return func(s *Service) {
		for _, name := range usernames {
			trimmed := strings.TrimSpace(name)
			if trimmed == "" {
				continue
			}
			s.adminAllowlist[trimmed] = struct{}{}
		}
	}
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	s := &Service{store: store, log: log, adminAllowlist: make(map[string]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new user with a hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return user.User{}, errors.BadRequest("username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, errors.BadRequest("a valid email is required")
	}
	if len(password) < 8 {
		return user.User{}, errors.BadRequest("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errors.Internal("hash password", err)
	}

	role := user.RoleCustomer
	if _, ok := s.adminAllowlist[username]; ok {
		role = user.RoleAdmin
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return user.User{}, errors.Conflict("username or email already registered")
		}
		return user.User{}, err
	}

	s.log.WithContext(ctx).Infof("user %d registered", created.ID)
	return created, nil
}

// Authenticate verifies credentials and returns the matching user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return user.User{}, errors.Unauthorized("invalid credentials")
		}
		return user.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{"username": username})
		return user.User{}, errors.Unauthorized("invalid credentials")
	}
	return u, nil
}

// Get returns a user. A caller may read itself; admins may read anyone.
// Everything else reports not found so the endpoint does not leak which user
// ids exist.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id int64) (user.User, error) {
	if caller.ID != id && !caller.IsAdmin() {
		return user.User{}, errors.NotFound("user not found")
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return user.User{}, errors.NotFound("user not found")
		}
		return user.User{}, err
	}
	return u, nil
}

// ChangeRole sets a user's role. Admin only. The write is skipped when the
// value does not change.
func (s *Service) ChangeRole(ctx context.Context, caller auth.Caller, id int64, value string) (user.User, error) {
	if !caller.IsAdmin() {
		return user.User{}, errors.Forbidden("admin role required")
	}

	role, err := user.ParseRole(value)
	if err != nil {
		return user.User{}, errors.BadRequest("invalid value for role")
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return user.User{}, errors.NotFound("user not found")
		}
		return user.User{}, err
	}

	if u.Role == role {
		return u, nil
	}

	updated, err := s.store.UpdateUserRole(ctx, id, role)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithContext(ctx).Infof("user %d role set to %s", id, role)
	return updated, nil
}
