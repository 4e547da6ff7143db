package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/shared"
	"github.com/quillpost/quillpost/internal/users"
)

// SuperadminID is the reserved identity of the environment-configured
// operator account. It never collides with database IDs, which start at 1.
const SuperadminID int64 = -1

// UserStore exposes the account lookups auth depends on. Satisfied by the
// users repository.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Registrar creates accounts. Satisfied by the users service.
type Registrar interface {
	Register(ctx context.Context, req users.RegisterRequest) (*users.User, error)
}

// CascadeRunner triggers the reactivation cascade when a deactivated account
// logs back in. Satisfied by the lifecycle coordinator.
type CascadeRunner interface {
	OnReactivate(ctx context.Context, userID int64) error
}

// Superadmin holds the environment-configured operator credentials. Empty
// email disables the account.
type Superadmin struct {
	Email    string
	Password string
}

// Service wraps authentication business rules.
type Service struct {
	store      UserStore
	registrar  Registrar
	cascade    CascadeRunner
	issuer     *TokenIssuer
	denylist   *Denylist
	superadmin Superadmin
	logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(store UserStore, registrar Registrar, cascade CascadeRunner, issuer *TokenIssuer, denylist *Denylist, superadmin Superadmin, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		registrar:  registrar,
		cascade:    cascade,
		issuer:     issuer,
		denylist:   denylist,
		superadmin: superadmin,
		logger:     logger,
	}
}

// Register creates an account and signs its first credential.
func (s *Service) Register(ctx context.Context, req users.RegisterRequest) (*users.User, string, error) {
	user, err := s.registrar.Register(ctx, req)
	if err != nil {
		return nil, "", err
	}
	token, _, err := s.issuer.Issue(user.ID, string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login validates credentials and signs a token. A deactivated account that
// presents valid credentials is reactivated first: its archived posts return
// to their previous status and its interactions come back.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, string, error) {
	if s.superadmin.Email != "" && email == s.superadmin.Email {
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.superadmin.Password)) != 1 {
			return nil, "", shared.ErrInvalidCredentials
		}
		token, _, err := s.issuer.Issue(SuperadminID, string(authz.RoleSuperadmin))
		if err != nil {
			return nil, "", err
		}
		return superadminUser(s.superadmin.Email), token, nil
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", shared.ErrInvalidCredentials
	}

	if !user.IsActive {
		if err := s.cascade.OnReactivate(ctx, user.ID); err != nil {
			return nil, "", err
		}
		user, err = s.store.GetByID(ctx, user.ID)
		if err != nil {
			return nil, "", err
		}
	}

	token, _, err := s.issuer.Issue(user.ID, string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout revokes the presented credential for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func superadminUser(email string) *users.User {
	return &users.User{
		ID:       SuperadminID,
		Username: "superadmin",
		Email:    email,
		Role:     authz.RoleSuperadmin,
		IsActive: true,
	}
}
