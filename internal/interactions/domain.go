// Package interactions implements likes and comments on posts. Both share one
// table; rows are soft-deleted so denormalized counters and moderation history
// stay reconstructible.
package interactions

import (
	"time"

	"github.com/quillpost/quillpost/internal/authz"
)

// Type discriminates interaction rows.
type Type string

// Interaction types.
const (
	TypeLike    Type = "like"
	TypeComment Type = "comment"
)

// Valid reports whether the type is known.
func (t Type) Valid() bool {
	return t == TypeLike || t == TypeComment
}

// Interaction is a like or a comment attached to a post. Comments may nest one
// level through ParentCommentID.
type Interaction struct {
	ID              int64
	UserID          int64
	PostID          int64
	Type            Type
	Content         string
	ParentCommentID int64
	IsActive        bool

	// Resolved via joins, not persisted on the row.
	UserRole     string
	PostAuthorID int64
	PostStatus   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind returns the resource kind the permission matrix sees.
func (i *Interaction) Kind() authz.ResourceKind {
	if i.Type == TypeLike {
		return authz.KindLikes
	}
	return authz.KindComments
}

// Snapshot builds the engine view of the interaction, carrying the parent
// post's visibility context alongside the row itself.
func (i *Interaction) Snapshot() authz.Resource {
	return authz.Resource{
		Kind:      i.Kind(),
		ID:        i.ID,
		OwnerID:   i.UserID,
		OwnerRole: authz.Role(i.UserRole),
		IsActive:  i.IsActive,
		Post: &authz.ParentPost{
			ID:      i.PostID,
			OwnerID: i.PostAuthorID,
			Status:  authz.Status(i.PostStatus),
		},
	}
}
