package authz

// ConditionalPredicate evaluates resource state against the acting identity.
// Predicates are pure functions registered at startup; the matrix never
// embeds behavior directly.
type ConditionalPredicate func(res Resource, actor Actor) bool

type predicateKey struct {
	kind   ResourceKind
	action Action
}

// ConditionalSet holds the predicates consulted when a matrix entry resolves
// to ModeConditional, plus the compiled collection filter for read actions.
type ConditionalSet struct {
	predicates map[predicateKey]ConditionalPredicate
	filters    map[predicateKey]FilterKind
}

// NewConditionalSet returns an empty registry.
func NewConditionalSet() *ConditionalSet {
	return &ConditionalSet{
		predicates: make(map[predicateKey]ConditionalPredicate),
		filters:    make(map[predicateKey]FilterKind),
	}
}

// Register attaches a predicate to a (kind, action) pair.
func (s *ConditionalSet) Register(kind ResourceKind, action Action, p ConditionalPredicate) *ConditionalSet {
	s.predicates[predicateKey{kind, action}] = p
	return s
}

// RegisterFilter attaches the collection filter compiled for a (kind, action)
// pair. Read entries must register one: the predicate cannot run per row
// before fetch.
func (s *ConditionalSet) RegisterFilter(kind ResourceKind, action Action, f FilterKind) *ConditionalSet {
	s.filters[predicateKey{kind, action}] = f
	return s
}

// Registered reports whether a predicate exists for the pair.
func (s *ConditionalSet) Registered(kind ResourceKind, action Action) bool {
	_, ok := s.predicates[predicateKey{kind, action}]
	return ok
}

// HasFilter reports whether a collection filter exists for the pair.
func (s *ConditionalSet) HasFilter(kind ResourceKind, action Action) bool {
	_, ok := s.filters[predicateKey{kind, action}]
	return ok
}

// Evaluate runs the predicate for the pair against a concrete resource.
// Unregistered pairs deny.
func (s *ConditionalSet) Evaluate(kind ResourceKind, action Action, res Resource, actor Actor) bool {
	p, ok := s.predicates[predicateKey{kind, action}]
	if !ok {
		return false
	}
	return p(res, actor)
}

// Filter compiles the collection filter for the pair on behalf of the actor.
func (s *ConditionalSet) Filter(kind ResourceKind, action Action, actor Actor) (QueryFilter, bool) {
	f, ok := s.filters[predicateKey{kind, action}]
	if !ok {
		return QueryFilter{}, false
	}
	qf := QueryFilter{Kind: f}
	if f == FilterOwned || f == FilterPublishedOrOwned {
		qf.OwnerID = actor.ID
	}
	return qf, true
}

// DefaultConditionalSet registers the canonical conditional rules.
//
// Creation is stricter than reading: an author may read their own draft but
// nobody, the author included, may like, comment on, or repost a post that is
// not published.
func DefaultConditionalSet() *ConditionalSet {
	s := NewConditionalSet()

	s.Register(KindPosts, ActionRead, readPublishedOrOwn)
	s.RegisterFilter(KindPosts, ActionRead, FilterPublishedOrOwned)
	s.Register(KindReposts, ActionRead, readPublishedOrOwn)
	s.RegisterFilter(KindReposts, ActionRead, FilterPublishedOrOwned)

	s.Register(KindReposts, ActionCreate, createPublishedOnly)
	s.Register(KindInteractions, ActionCreate, createPublishedOnly)
	s.Register(KindLikes, ActionCreate, createPublishedOnly)
	s.Register(KindComments, ActionCreate, createPublishedOnly)

	s.Register(KindInteractions, ActionRead, readParentPublishedOrOwned)
	s.RegisterFilter(KindInteractions, ActionRead, FilterPublishedOrOwned)
	s.Register(KindLikes, ActionRead, readParentPublishedOrOwned)
	s.RegisterFilter(KindLikes, ActionRead, FilterPublishedOrOwned)
	s.Register(KindComments, ActionRead, readParentPublishedOrOwned)
	s.RegisterFilter(KindComments, ActionRead, FilterPublishedOrOwned)

	return s
}

// readPublishedOrOwn allows published content for everyone and unpublished
// content for its owner only.
func readPublishedOrOwn(res Resource, actor Actor) bool {
	if res.Status == StatusPublished {
		return true
	}
	return actor.Identified() && res.OwnerID == actor.ID
}

// createPublishedOnly requires the target post to be published, with no
// ownership escape hatch.
func createPublishedOnly(res Resource, actor Actor) bool {
	_, status := res.parentContext()
	return status == StatusPublished
}

// readParentPublishedOrOwned gates an interaction by the visibility of its
// parent post: published, or owned by the actor. Ownership of the
// interaction itself is irrelevant here.
func readParentPublishedOrOwned(res Resource, actor Actor) bool {
	ownerID, status := res.parentContext()
	if status == StatusPublished {
		return true
	}
	return actor.Identified() && ownerID == actor.ID
}
