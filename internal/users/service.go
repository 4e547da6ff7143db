package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/shared"
)

// DeleteConfirmation is the phrase an owner must supply to destroy their
// account.
const DeleteConfirmation = "DELETE_MY_ACCOUNT"

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter authz.QueryFilter, role authz.Role, page, perPage int) ([]User, int, error)
	UpdateProfile(ctx context.Context, user *User) error
	SetRole(ctx context.Context, id int64, role authz.Role) error
	DeleteCascade(ctx context.Context, id int64) error
}

// CascadeRunner coordinates the deactivation and reactivation cascades.
// Satisfied by the lifecycle coordinator.
type CascadeRunner interface {
	OnDeactivate(ctx context.Context, userID int64) error
	OnReactivate(ctx context.Context, userID int64) error
}

// Service handles account business logic.
type Service struct {
	repo        RepositoryPort
	engine      *authz.Engine
	cascade     CascadeRunner
	idempotency *shared.IdempotencyStore
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, cascade CascadeRunner, idempotency *shared.IdempotencyStore, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, cascade: cascade, idempotency: idempotency, audit: audit, logger: logger}
}

// RegisterRequest carries the fields for a new account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// Register creates a plain user account. Open to anyone; the role is never
// caller supplied.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email required", shared.ErrValidation)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         authz.RoleUser,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Get fetches an account profile the actor may see.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id int64) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dec, err := s.engine.Authorize(actor, authz.KindUsers, authz.ActionRead, snapshotPtr(user))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}
	return user, nil
}

// List returns the accounts visible to the actor, optionally narrowed to one
// role. Plain users see only their own row; administrators see everyone.
func (s *Service) List(ctx context.Context, actor authz.Actor, role authz.Role, page, perPage int) ([]User, shared.Pagination, error) {
	if role != "" && !role.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, role)
	}
	dec, err := s.engine.Authorize(actor, authz.KindUsers, authz.ActionRead, nil)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if !dec.Allowed {
		return nil, shared.Pagination{}, authz.DenyError(actor)
	}
	var filter authz.QueryFilter
	if dec.Filter != nil {
		filter = *dec.Filter
	}
	rows, total, err := s.repo.List(ctx, filter, role, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// UpdateProfileRequest carries the mutable profile fields.
type UpdateProfileRequest struct {
	FirstName *string
	LastName  *string
	Bio       *string
}

// UpdateProfile mutates profile fields on behalf of the owner or a moderator.
func (s *Service) UpdateProfile(ctx context.Context, actor authz.Actor, id int64, req UpdateProfileRequest) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dec, err := s.engine.Authorize(actor, authz.KindUsers, authz.ActionUpdate, snapshotPtr(user))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	s.recordModeration(ctx, actor, dec, "users.update", user.ID)
	return user, nil
}

// SetRole promotes or demotes an account. Role changes are reserved to the
// superadmin regardless of what the matrix would otherwise allow, and only
// the user/admin pair is reachable: the superadmin role is never granted or
// revoked at runtime.
func (s *Service) SetRole(ctx context.Context, actor authz.Actor, id int64, role authz.Role) (*User, error) {
	if actor.EffectiveRole() != authz.RoleSuperadmin {
		return nil, authz.DenyError(actor)
	}
	if role != authz.RoleUser && role != authz.RoleAdmin {
		return nil, fmt.Errorf("%w: role %q not assignable", shared.ErrValidation, role)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == authz.RoleSuperadmin {
		return nil, fmt.Errorf("%w: superadmin role is immutable", shared.ErrValidation)
	}
	dec, err := s.engine.Authorize(actor, authz.KindUsers, authz.ActionUpdate, snapshotPtr(user))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	if user.Role != role {
		if err := s.repo.SetRole(ctx, user.ID, role); err != nil {
			return nil, err
		}
		user.Role = role
	}
	s.recordModeration(ctx, actor, dec, "users.set_role", user.ID)
	return user, nil
}

// Deactivate switches an account off and runs the content cascade: the
// account's published and draft posts archive, its interactions deactivate,
// and counters adjust. The cascade is idempotent and replayed by the job
// worker if it fails midway.
func (s *Service) Deactivate(ctx context.Context, actor authz.Actor, id int64) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	dec, err := s.engine.Authorize(actor, authz.KindUsers, authz.ActionDeactivate, snapshotPtr(user))
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return authz.DenyError(actor)
	}
	if !user.IsActive {
		return nil
	}
	if err := s.cascade.OnDeactivate(ctx, user.ID); err != nil {
		return err
	}
	s.recordModeration(ctx, actor, dec, "users.deactivate", user.ID)
	return nil
}

// DeleteRequest carries the safeguards for account destruction.
type DeleteRequest struct {
	Password       string
	Confirmation   string
	IdempotencyKey string
}

// Delete permanently destroys an account together with its posts, reposts and
// interactions. Owners must re-prove their password; every caller must supply
// the confirmation phrase.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64, req DeleteRequest) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	dec, err := s.engine.Authorize(actor, authz.KindUsers, authz.ActionDelete, snapshotPtr(user))
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return authz.DenyError(actor)
	}

	if req.Confirmation != DeleteConfirmation {
		return fmt.Errorf("%w: confirmation phrase mismatch", shared.ErrValidation)
	}
	if actor.ID == user.ID {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			return shared.ErrInvalidCredentials
		}
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "users.delete"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil
			}
			return err
		}
	}

	if err := s.repo.DeleteCascade(ctx, user.ID); err != nil {
		if req.IdempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, req.IdempotencyKey); delErr != nil && s.logger != nil {
				s.logger.Warn("rollback idempotency key", slog.Any("error", delErr))
			}
		}
		return err
	}
	s.recordModeration(ctx, actor, dec, "users.delete", user.ID)
	return nil
}

func (s *Service) recordModeration(ctx context.Context, actor authz.Actor, dec authz.Decision, action string, userID int64) {
	if s.audit == nil || dec.Mode != authz.ModeModerate {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit moderation", slog.Any("error", err))
	}
}

func snapshotPtr(u *User) *authz.Resource {
	snap := u.Snapshot()
	return &snap
}
