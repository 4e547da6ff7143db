package authz

import (
	"net/http"
	"testing"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewDefault()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return e
}

func authorize(t *testing.T, e *Engine, actor Actor, kind ResourceKind, action Action, res *Resource) Decision {
	t.Helper()
	dec, err := e.Authorize(actor, kind, action, res)
	if err != nil {
		t.Fatalf("authorize %s/%s: %v", kind, action, err)
	}
	return dec
}

func TestAnonymousSeesOnlyPublished(t *testing.T) {
	e := newEngine(t)
	anon := Anonymous()

	published := Resource{Kind: KindPosts, ID: 1, OwnerID: 10, OwnerRole: RoleUser, Status: StatusPublished}
	draft := Resource{Kind: KindPosts, ID: 2, OwnerID: 10, OwnerRole: RoleUser, Status: StatusDraft}

	if dec := authorize(t, e, anon, KindPosts, ActionRead, &published); !dec.Allowed {
		t.Fatal("anonymous should read published posts")
	}
	if dec := authorize(t, e, anon, KindPosts, ActionRead, &draft); dec.Allowed {
		t.Fatal("anonymous must not read drafts")
	}
	if dec := authorize(t, e, anon, KindPosts, ActionCreate, nil); dec.Allowed {
		t.Fatal("anonymous must not create posts")
	}
}

func TestAnonymousCollectionReadCompilesPublishedFilter(t *testing.T) {
	e := newEngine(t)
	dec := authorize(t, e, Anonymous(), KindPosts, ActionRead, nil)
	if !dec.Allowed {
		t.Fatal("collection read should be allowed with filter")
	}
	if dec.Filter == nil || dec.Filter.Kind != FilterPublishedOnly {
		t.Fatalf("expected published_only filter, got %+v", dec.Filter)
	}
}

func TestUserCollectionReadCompilesPublishedOrOwnedFilter(t *testing.T) {
	e := newEngine(t)
	actor := Actor{ID: 7, Role: RoleUser, IsActive: true}
	dec := authorize(t, e, actor, KindPosts, ActionRead, nil)
	if !dec.Allowed {
		t.Fatal("collection read should be allowed")
	}
	if dec.Filter == nil || dec.Filter.Kind != FilterPublishedOrOwned || dec.Filter.OwnerID != 7 {
		t.Fatalf("expected published_or_owned filter scoped to actor, got %+v", dec.Filter)
	}
}

func TestOwnerReadsOwnDraftOthersDoNot(t *testing.T) {
	e := newEngine(t)
	owner := Actor{ID: 10, Role: RoleUser, IsActive: true}
	other := Actor{ID: 11, Role: RoleUser, IsActive: true}
	draft := Resource{Kind: KindPosts, ID: 2, OwnerID: 10, OwnerRole: RoleUser, Status: StatusDraft}

	if dec := authorize(t, e, owner, KindPosts, ActionRead, &draft); !dec.Allowed {
		t.Fatal("owner should read own draft")
	}
	if dec := authorize(t, e, other, KindPosts, ActionRead, &draft); dec.Allowed {
		t.Fatal("non-owner must not read a draft")
	}
}

func TestNobodyInteractsWithDrafts(t *testing.T) {
	e := newEngine(t)
	owner := Actor{ID: 10, Role: RoleUser, IsActive: true}
	like := Resource{
		Kind:    KindLikes,
		OwnerID: 10,
		Post:    &ParentPost{ID: 2, OwnerID: 10, Status: StatusDraft},
	}
	if dec := authorize(t, e, owner, KindLikes, ActionCreate, &like); dec.Allowed {
		t.Fatal("even the author must not like a draft")
	}
	repostTarget := Resource{Kind: KindReposts, ID: 2, OwnerID: 10, OwnerRole: RoleUser, Status: StatusDraft}
	if dec := authorize(t, e, owner, KindReposts, ActionCreate, &repostTarget); dec.Allowed {
		t.Fatal("drafts must not be repostable")
	}
}

func TestOwnModeRequiresOwnership(t *testing.T) {
	e := newEngine(t)
	owner := Actor{ID: 10, Role: RoleUser, IsActive: true}
	other := Actor{ID: 11, Role: RoleUser, IsActive: true}
	post := Resource{Kind: KindPosts, ID: 2, OwnerID: 10, OwnerRole: RoleUser, Status: StatusPublished}

	if dec := authorize(t, e, owner, KindPosts, ActionUpdate, &post); !dec.Allowed {
		t.Fatal("owner should update own post")
	}
	if dec := authorize(t, e, other, KindPosts, ActionUpdate, &post); dec.Allowed {
		t.Fatal("non-owner must not update another's post")
	}
}

func TestAdminModerationBounds(t *testing.T) {
	e := newEngine(t)
	admin := Actor{ID: 20, Role: RoleAdmin, IsActive: true}

	userPost := Resource{Kind: KindPosts, ID: 1, OwnerID: 10, OwnerRole: RoleUser, Status: StatusPublished}
	peerPost := Resource{Kind: KindPosts, ID: 2, OwnerID: 21, OwnerRole: RoleAdmin, Status: StatusPublished}
	ownPost := Resource{Kind: KindPosts, ID: 3, OwnerID: 20, OwnerRole: RoleAdmin, Status: StatusPublished}

	if dec := authorize(t, e, admin, KindPosts, ActionDelete, &userPost); !dec.Allowed {
		t.Fatal("admin should delete plain-user content")
	}
	if dec := authorize(t, e, admin, KindPosts, ActionDelete, &peerPost); dec.Allowed {
		t.Fatal("admin must not delete a peer admin's content")
	}
	if dec := authorize(t, e, admin, KindPosts, ActionDelete, &ownPost); !dec.Allowed {
		t.Fatal("admin should delete own content")
	}
}

func TestModerateModeDeniesCollectionDecisions(t *testing.T) {
	e := newEngine(t)
	admin := Actor{ID: 20, Role: RoleAdmin, IsActive: true}
	if dec := authorize(t, e, admin, KindPosts, ActionDelete, nil); dec.Allowed {
		t.Fatal("moderation must be evaluated against a concrete resource")
	}
}

func TestCommentDeletionByCommentOrPostOwner(t *testing.T) {
	e := newEngine(t)
	commenter := Actor{ID: 30, Role: RoleUser, IsActive: true}
	postOwner := Actor{ID: 10, Role: RoleUser, IsActive: true}
	bystander := Actor{ID: 40, Role: RoleUser, IsActive: true}

	comment := Resource{
		Kind:     KindComments,
		ID:       5,
		OwnerID:  30,
		IsActive: true,
		Post:     &ParentPost{ID: 1, OwnerID: 10, Status: StatusPublished},
	}

	if dec := authorize(t, e, commenter, KindComments, ActionDelete, &comment); !dec.Allowed {
		t.Fatal("comment author should delete own comment")
	}
	if dec := authorize(t, e, postOwner, KindComments, ActionDelete, &comment); !dec.Allowed {
		t.Fatal("post owner should delete comments on own post")
	}
	if dec := authorize(t, e, bystander, KindComments, ActionDelete, &comment); dec.Allowed {
		t.Fatal("bystander must not delete the comment")
	}
}

func TestAdminAccountModerationSkipsPeers(t *testing.T) {
	e := newEngine(t)
	admin := Actor{ID: 20, Role: RoleAdmin, IsActive: true}

	plain := Resource{Kind: KindUsers, ID: 10, OwnerID: 10, OwnerRole: RoleUser, IsActive: true}
	peer := Resource{Kind: KindUsers, ID: 21, OwnerID: 21, OwnerRole: RoleAdmin, IsActive: true}
	self := Resource{Kind: KindUsers, ID: 20, OwnerID: 20, OwnerRole: RoleAdmin, IsActive: true}

	if dec := authorize(t, e, admin, KindUsers, ActionDeactivate, &plain); !dec.Allowed {
		t.Fatal("admin should deactivate plain users")
	}
	if dec := authorize(t, e, admin, KindUsers, ActionDeactivate, &peer); dec.Allowed {
		t.Fatal("admin must not deactivate a peer admin")
	}
	if dec := authorize(t, e, admin, KindUsers, ActionDeactivate, &self); !dec.Allowed {
		t.Fatal("admin should deactivate own account")
	}
}

func TestDeactivatedActorDegradesToUnknown(t *testing.T) {
	e := newEngine(t)
	inactive := Actor{ID: 10, Role: RoleUser, IsActive: false}

	own := Resource{Kind: KindPosts, ID: 2, OwnerID: 10, OwnerRole: RoleUser, Status: StatusDraft}
	if dec := authorize(t, e, inactive, KindPosts, ActionRead, &own); dec.Allowed {
		t.Fatal("deactivated actor must not read own draft")
	}
	published := Resource{Kind: KindPosts, ID: 1, OwnerID: 11, OwnerRole: RoleUser, Status: StatusPublished}
	if dec := authorize(t, e, inactive, KindPosts, ActionRead, &published); !dec.Allowed {
		t.Fatal("deactivated actor should still read published content")
	}
}

func TestSuperadminCannotAuthorOthersContent(t *testing.T) {
	e := newEngine(t)
	super := Actor{ID: -1, Role: RoleSuperadmin, IsActive: true}

	foreign := Resource{Kind: KindPosts, OwnerID: 10, OwnerRole: RoleUser, Status: StatusDraft}
	if dec := authorize(t, e, super, KindPosts, ActionCreate, &foreign); dec.Allowed {
		t.Fatal("creation must stay bound to the actor's own identity")
	}
	own := Resource{Kind: KindPosts, OwnerID: -1, OwnerRole: RoleSuperadmin, Status: StatusDraft}
	if dec := authorize(t, e, super, KindPosts, ActionCreate, &own); !dec.Allowed {
		t.Fatal("superadmin should create own content")
	}
	if dec := authorize(t, e, super, KindPosts, ActionDelete, &foreign); !dec.Allowed {
		t.Fatal("superadmin should delete anything")
	}
}

func TestInvalidModeFailsClosed(t *testing.T) {
	matrix := DefaultMatrix()
	e, err := New(matrix, DefaultConditionalSet(), DefaultModerationSet())
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	matrix[RoleUser][KindPosts][ActionRead] = Mode("bogus")

	_, err = e.Authorize(Actor{ID: 1, Role: RoleUser, IsActive: true}, KindPosts, ActionRead, nil)
	if err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestDenyStatusHidesExistenceFromUnknownActors(t *testing.T) {
	if got := DenyStatus(Anonymous()); got != http.StatusNotFound {
		t.Fatalf("anonymous denial should be 404, got %d", got)
	}
	if got := DenyStatus(Actor{ID: 1, Role: RoleUser, IsActive: true}); got != http.StatusForbidden {
		t.Fatalf("identified denial should be 403, got %d", got)
	}
}
