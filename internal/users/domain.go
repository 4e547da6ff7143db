// Package users implements account profiles, role administration and the
// account lifecycle entry points.
package users

import (
	"time"

	"github.com/quillpost/quillpost/internal/authz"
)

// User represents an account. Role and IsActive feed the decision engine;
// LastDeactivatedAt and DeactivationCount track lifecycle history.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         authz.Role
	IsActive     bool

	FirstName string
	LastName  string
	Bio       string

	LastDeactivatedAt *time.Time
	DeactivationCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot builds the engine view of the account. The account is its own
// owner.
func (u *User) Snapshot() authz.Resource {
	return authz.Resource{
		Kind:      authz.KindUsers,
		ID:        u.ID,
		OwnerID:   u.ID,
		OwnerRole: u.Role,
		IsActive:  u.IsActive,
	}
}

// Actor builds the acting identity derived from this account.
func (u *User) Actor() authz.Actor {
	return authz.Actor{ID: u.ID, Role: u.Role, IsActive: u.IsActive}
}
