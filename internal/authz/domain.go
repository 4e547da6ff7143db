// Package authz implements the authorization and visibility decision engine.
// All permission checks in the application flow through Engine.Authorize; the
// package performs no I/O and holds no mutable state after startup.
package authz

// Role identifies the privilege tier asserted by an actor's credential.
type Role string

// Known roles, lowest privilege first.
const (
	RoleUnknown    Role = "unknown"
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether the role belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUnknown, RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// ResourceKind enumerates the closed set of protected resource kinds.
type ResourceKind string

// Known resource kinds. Likes and comments are interaction subtypes with
// their own permission rows; KindInteractions covers type-agnostic routes.
const (
	KindPosts        ResourceKind = "posts"
	KindReposts      ResourceKind = "reposts"
	KindInteractions ResourceKind = "interactions"
	KindLikes        ResourceKind = "likes"
	KindComments     ResourceKind = "comments"
	KindUsers        ResourceKind = "users"
)

// Valid reports whether the kind belongs to the closed kind set.
func (k ResourceKind) Valid() bool {
	switch k {
	case KindPosts, KindReposts, KindInteractions, KindLikes, KindComments, KindUsers:
		return true
	}
	return false
}

// Action enumerates the operations governed by the permission matrix.
type Action string

// Known actions. ActionDeactivate applies to user accounts only.
const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionDeactivate Action = "deactivate"
)

// Valid reports whether the action belongs to the closed action set.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionDeactivate:
		return true
	}
	return false
}

// Mode is the permission level a matrix entry resolves to.
type Mode string

// Permission modes. ModeModerate grants elevated but bounded cross-owner
// privilege; it is strictly narrower than ModeAny.
const (
	ModeNone          Mode = "none"
	ModeAny           Mode = "any"
	ModeOwn           Mode = "own"
	ModeConditional   Mode = "conditional"
	ModeModerate      Mode = "moderate"
	ModePublishedOnly Mode = "published_only"
)

// Valid reports whether the mode belongs to the closed mode set.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeAny, ModeOwn, ModeConditional, ModeModerate, ModePublishedOnly:
		return true
	}
	return false
}

// Status mirrors the post lifecycle states the engine can observe.
type Status string

// Post lifecycle states.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Actor is the identity (or lack thereof) performing a request.
type Actor struct {
	ID       int64
	Role     Role
	IsActive bool
}

// Anonymous returns the actor used when no credential resolves.
func Anonymous() Actor {
	return Actor{Role: RoleUnknown}
}

// Identified reports whether the actor carries a concrete identity.
func (a Actor) Identified() bool {
	return a.ID != 0
}

// EffectiveRole degrades deactivated or unidentified actors to RoleUnknown.
// A valid credential presented by a deactivated account grants no privilege
// until the reactivation cascade has run.
func (a Actor) EffectiveRole() Role {
	if !a.Identified() || a.Role == "" {
		return RoleUnknown
	}
	if a.Role != RoleUnknown && !a.IsActive {
		return RoleUnknown
	}
	return a.Role
}

// ParentPost carries the post context needed to authorize an interaction.
type ParentPost struct {
	ID      int64
	OwnerID int64
	Status  Status
}

// Resource is the kind-tagged snapshot the engine evaluates. Callers populate
// only the fields applicable to the kind: Status for posts and reposts,
// IsActive and Post for interactions, OwnerRole wherever moderation rules
// compare roles. For KindUsers the target account is both the resource and
// its owner.
type Resource struct {
	Kind      ResourceKind
	ID        int64
	OwnerID   int64
	OwnerRole Role
	Status    Status
	IsActive  bool
	Post      *ParentPost
}

// parentContext resolves the post a resource hangs off: the resource itself
// for posts and reposts, the linked parent post for interactions.
func (r Resource) parentContext() (ownerID int64, status Status) {
	if r.Post != nil {
		return r.Post.OwnerID, r.Post.Status
	}
	return r.OwnerID, r.Status
}

// Decision is the outcome of a single authorization call.
type Decision struct {
	Allowed bool
	Mode    Mode
	Filter  *QueryFilter
}
