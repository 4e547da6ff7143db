package authz

// ModerationPredicate decides whether an elevated actor may act on a concrete
// resource it does not own. Every predicate must reject action against
// peer-or-higher roles so moderation can never escalate between admins.
type ModerationPredicate func(res Resource, actor Actor) bool

type moderationKey struct {
	kind   ResourceKind
	action Action
	role   Role
}

// ModerationSet holds the predicates consulted when a matrix entry resolves
// to ModeModerate. Keys include the acting role: the same action can carry
// different reach for user and admin.
type ModerationSet struct {
	predicates map[moderationKey]ModerationPredicate
}

// NewModerationSet returns an empty registry.
func NewModerationSet() *ModerationSet {
	return &ModerationSet{predicates: make(map[moderationKey]ModerationPredicate)}
}

// Register attaches a predicate to a (kind, action, role) triple.
func (s *ModerationSet) Register(kind ResourceKind, action Action, role Role, p ModerationPredicate) *ModerationSet {
	s.predicates[moderationKey{kind, action, role}] = p
	return s
}

// Registered reports whether a predicate exists for the triple.
func (s *ModerationSet) Registered(kind ResourceKind, action Action, role Role) bool {
	_, ok := s.predicates[moderationKey{kind, action, role}]
	return ok
}

// Evaluate runs the predicate for the triple. Unregistered triples deny.
func (s *ModerationSet) Evaluate(kind ResourceKind, action Action, role Role, res Resource, actor Actor) bool {
	p, ok := s.predicates[moderationKey{kind, action, role}]
	if !ok {
		return false
	}
	return p(res, actor)
}

// DefaultModerationSet registers the canonical moderation rules.
//
// Comment deletion is deliberately uniform across user and admin: a comment
// can be removed by whoever wrote it or by the owner of the post it sits on,
// and admins get no reach beyond that. Like deletion by admins is
// unrestricted as a spam-control exception.
func DefaultModerationSet() *ModerationSet {
	s := NewModerationSet()

	s.Register(KindPosts, ActionUpdate, RoleAdmin, unrestricted)
	s.Register(KindReposts, ActionUpdate, RoleAdmin, unrestricted)
	s.Register(KindPosts, ActionDelete, RoleAdmin, deletePlainUserContentOrOwn)
	s.Register(KindReposts, ActionDelete, RoleAdmin, deletePlainUserContentOrOwn)

	s.Register(KindUsers, ActionUpdate, RoleAdmin, moderatePlainUserOrSelf)
	s.Register(KindUsers, ActionDelete, RoleAdmin, moderatePlainUserOrSelf)
	s.Register(KindUsers, ActionDeactivate, RoleAdmin, moderatePlainUserOrSelf)

	s.Register(KindComments, ActionDelete, RoleUser, deleteOwnCommentOrOwnPost)
	s.Register(KindComments, ActionDelete, RoleAdmin, deleteOwnCommentOrOwnPost)

	s.Register(KindLikes, ActionDelete, RoleAdmin, unrestricted)

	return s
}

func unrestricted(Resource, Actor) bool {
	return true
}

// deletePlainUserContentOrOwn lets an admin delete content authored by plain
// users, plus their own content. Posts owned by admins or superadmins are out
// of reach.
func deletePlainUserContentOrOwn(res Resource, actor Actor) bool {
	if res.OwnerRole == RoleUser {
		return true
	}
	return actor.Identified() && res.OwnerID == actor.ID
}

// moderatePlainUserOrSelf limits account moderation to plain-user targets,
// with a self-service carve-out.
func moderatePlainUserOrSelf(res Resource, actor Actor) bool {
	if res.OwnerRole == RoleUser {
		return true
	}
	return actor.Identified() && res.ID == actor.ID
}

// deleteOwnCommentOrOwnPost allows removal by the comment's author or by the
// owner of the parent post.
func deleteOwnCommentOrOwnPost(res Resource, actor Actor) bool {
	if !actor.Identified() {
		return false
	}
	if res.OwnerID == actor.ID {
		return true
	}
	return res.Post != nil && res.Post.OwnerID == actor.ID
}
