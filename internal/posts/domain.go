// Package posts implements authored content: regular posts and reposts share
// one table and one lifecycle.
package posts

import (
	"errors"
	"time"

	"github.com/quillpost/quillpost/internal/authz"
)

// Status is the post lifecycle state.
type Status string

// Lifecycle states: draft -> published -> archived.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Valid reports whether the status belongs to the lifecycle enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ErrInvalidTransition indicates a lifecycle move outside the state machine.
var ErrInvalidTransition = errors.New("posts: invalid status transition")

// CanTransition reports whether a direct (owner or moderator initiated)
// transition is allowed. System archival through account deactivation runs
// outside this machine and is handled by the lifecycle coordinator.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPublished || to == StatusArchived
	case StatusPublished:
		return to == StatusArchived
	}
	return false
}

// Post represents a piece of authored content. A repost references its
// original through OriginalPostID and may carry an optional comment instead
// of content.
type Post struct {
	ID       int64
	AuthorID int64
	Title    string
	Slug     string
	Content  string
	Excerpt  string
	Tags     []string
	Status   Status

	// PreviousStatus and ArchivedByDeactivation track system archival:
	// either both are unset, or the post was force-archived by its author's
	// account deactivation and PreviousStatus records what to restore.
	PreviousStatus         Status
	ArchivedByDeactivation bool

	IsRepost       bool
	OriginalPostID int64
	RepostComment  string

	LikesCount    int
	CommentsCount int
	RepostsCount  int

	// AuthorRole is resolved via join for moderation decisions; not persisted.
	AuthorRole string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind returns the resource kind the permission matrix sees.
func (p *Post) Kind() authz.ResourceKind {
	if p.IsRepost {
		return authz.KindReposts
	}
	return authz.KindPosts
}

// Snapshot builds the engine view of the post.
func (p *Post) Snapshot() authz.Resource {
	return authz.Resource{
		Kind:      p.Kind(),
		ID:        p.ID,
		OwnerID:   p.AuthorID,
		OwnerRole: authz.Role(p.AuthorRole),
		Status:    authz.Status(p.Status),
	}
}

// ParentContext builds the parent-post context attached to interaction
// snapshots.
func (p *Post) ParentContext() *authz.ParentPost {
	return &authz.ParentPost{
		ID:      p.ID,
		OwnerID: p.AuthorID,
		Status:  authz.Status(p.Status),
	}
}

// CounterField names a denormalized interaction counter on posts.
type CounterField string

// Counter fields maintained by the interactions module.
const (
	CounterLikes    CounterField = "likes_count"
	CounterComments CounterField = "comments_count"
	CounterReposts  CounterField = "reposts_count"
)
