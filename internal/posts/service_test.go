package posts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/shared"
)

type stubRepo struct {
	posts    map[int64]*Post
	counters map[string]int
	nextID   int64
	lastReq  ListRequest
}

func newStubRepo() *stubRepo {
	return &stubRepo{posts: make(map[int64]*Post), counters: make(map[string]int), nextID: 1}
}

func (s *stubRepo) Create(_ context.Context, post *Post) error {
	post.ID = s.nextID
	s.nextID++
	clone := *post
	s.posts[post.ID] = &clone
	return nil
}

func (s *stubRepo) Get(_ context.Context, id int64) (*Post, error) {
	post, ok := s.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *post
	return &clone, nil
}

func (s *stubRepo) List(_ context.Context, req ListRequest) ([]Post, int, error) {
	s.lastReq = req
	var result []Post
	for _, post := range s.posts {
		switch req.Filter.Kind {
		case authz.FilterPublishedOnly:
			if post.Status != StatusPublished {
				continue
			}
		case authz.FilterOwned:
			if post.AuthorID != req.Filter.OwnerID {
				continue
			}
		case authz.FilterPublishedOrOwned:
			if post.Status != StatusPublished && post.AuthorID != req.Filter.OwnerID {
				continue
			}
		}
		result = append(result, *post)
	}
	return result, len(result), nil
}

func (s *stubRepo) Update(_ context.Context, post *Post) error {
	if _, ok := s.posts[post.ID]; !ok {
		return shared.ErrNotFound
	}
	clone := *post
	s.posts[post.ID] = &clone
	return nil
}

func (s *stubRepo) SetStatus(_ context.Context, id int64, status Status) error {
	post, ok := s.posts[id]
	if !ok {
		return shared.ErrNotFound
	}
	post.Status = status
	return nil
}

func (s *stubRepo) DeleteCascade(_ context.Context, id int64) error {
	if _, ok := s.posts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *stubRepo) IncrementCounter(_ context.Context, id int64, field CounterField, delta int) error {
	s.counters[string(field)] += delta
	return nil
}

func newTestService(t *testing.T) (*Service, *stubRepo) {
	t.Helper()
	engine, err := authz.NewDefault()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	repo := newStubRepo()
	return NewService(repo, engine, nil, slog.Default()), repo
}

var (
	author = authz.Actor{ID: 10, Role: authz.RoleUser, IsActive: true}
	reader = authz.Actor{ID: 11, Role: authz.RoleUser, IsActive: true}
)

func TestCreateStartsAsDraft(t *testing.T) {
	svc, _ := newTestService(t)
	post, err := svc.Create(context.Background(), author, CreateRequest{Title: "Hello World", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if post.Status != StatusDraft {
		t.Fatalf("new post should be draft, got %s", post.Status)
	}
	if post.AuthorID != author.ID {
		t.Fatalf("post should belong to the actor, got author %d", post.AuthorID)
	}
	if !strings.HasPrefix(post.Slug, "hello-world-") {
		t.Fatalf("unexpected slug %q", post.Slug)
	}
}

func TestCreateRejectsAnonymous(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), authz.Anonymous(), CreateRequest{Title: "x", Content: "y"})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("anonymous create should deny opaquely, got %v", err)
	}
}

func TestGetDraftHiddenFromOthers(t *testing.T) {
	svc, _ := newTestService(t)
	post, err := svc.Create(context.Background(), author, CreateRequest{Title: "Draft", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(context.Background(), author, post.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(context.Background(), reader, post.ID); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("identified non-owner should get access denied, got %v", err)
	}
	if _, err := svc.Get(context.Background(), authz.Anonymous(), post.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("anonymous should get not found, got %v", err)
	}
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	svc, _ := newTestService(t)
	post, err := svc.Create(context.Background(), author, CreateRequest{Title: "T", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	published, err := svc.Transition(context.Background(), author, post.ID, StatusPublished)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != StatusPublished {
		t.Fatalf("expected published, got %s", published.Status)
	}

	if _, err := svc.Transition(context.Background(), author, post.ID, StatusDraft); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("published -> draft should be rejected, got %v", err)
	}

	archived, err := svc.Transition(context.Background(), author, post.ID, StatusArchived)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Status != StatusArchived {
		t.Fatalf("expected archived, got %s", archived.Status)
	}
	if _, err := svc.Transition(context.Background(), author, post.ID, StatusPublished); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("archived is terminal for direct transitions, got %v", err)
	}
}

func TestListCompilesEngineFilter(t *testing.T) {
	svc, repo := newTestService(t)
	if _, _, err := svc.List(context.Background(), reader, 1, 20, false); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastReq.Filter.Kind != authz.FilterPublishedOrOwned || repo.lastReq.Filter.OwnerID != reader.ID {
		t.Fatalf("filter must reach the repository, got %+v", repo.lastReq.Filter)
	}

	if _, _, err := svc.List(context.Background(), authz.Anonymous(), 1, 20, false); err != nil {
		t.Fatalf("anonymous list: %v", err)
	}
	if repo.lastReq.Filter.Kind != authz.FilterPublishedOnly {
		t.Fatalf("anonymous filter should be published_only, got %+v", repo.lastReq.Filter)
	}
}

func TestListMineOverridesToOwned(t *testing.T) {
	svc, repo := newTestService(t)
	if _, _, err := svc.List(context.Background(), author, 1, 20, true); err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if repo.lastReq.Filter.Kind != authz.FilterOwned || repo.lastReq.Filter.OwnerID != author.ID {
		t.Fatalf("mine listing should compile owned filter, got %+v", repo.lastReq.Filter)
	}
}

func TestRepostRequiresPublishedOriginal(t *testing.T) {
	svc, _ := newTestService(t)
	draft, err := svc.Create(context.Background(), author, CreateRequest{Title: "Original", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Repost(context.Background(), reader, draft.ID, ""); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("reposting a draft should be denied, got %v", err)
	}

	if _, err := svc.Transition(context.Background(), author, draft.ID, StatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}
	repost, err := svc.Repost(context.Background(), reader, draft.ID, "nice one")
	if err != nil {
		t.Fatalf("repost: %v", err)
	}
	if !repost.IsRepost || repost.OriginalPostID != draft.ID {
		t.Fatalf("repost not linked to original: %+v", repost)
	}
	if repost.Status != StatusPublished {
		t.Fatalf("reposts publish immediately, got %s", repost.Status)
	}
	if repost.AuthorID != reader.ID {
		t.Fatalf("repost belongs to the reposting actor, got %d", repost.AuthorID)
	}
}

func TestRepostCountTracksLifecycle(t *testing.T) {
	svc, repo := newTestService(t)
	original, err := svc.Create(context.Background(), author, CreateRequest{Title: "Original", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(context.Background(), author, original.ID, StatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}

	repost, err := svc.Repost(context.Background(), reader, original.ID, "")
	if err != nil {
		t.Fatalf("repost: %v", err)
	}
	if repo.counters["reposts_count"] != 1 {
		t.Fatalf("reposts counter should be 1, got %d", repo.counters["reposts_count"])
	}

	if err := svc.Delete(context.Background(), reader, repost.ID); err != nil {
		t.Fatalf("delete repost: %v", err)
	}
	if repo.counters["reposts_count"] != 0 {
		t.Fatalf("reposts counter should return to 0, got %d", repo.counters["reposts_count"])
	}
}

func TestOperatorCannotAuthorContent(t *testing.T) {
	svc, _ := newTestService(t)
	operator := authz.Actor{ID: -1, Role: authz.RoleSuperadmin, IsActive: true}

	if _, err := svc.Create(context.Background(), operator, CreateRequest{Title: "Op", Content: "body"}); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("unstored operator identity must not author posts, got %v", err)
	}

	post, err := svc.Create(context.Background(), author, CreateRequest{Title: "Original", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(context.Background(), author, post.ID, StatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := svc.Repost(context.Background(), operator, post.ID, ""); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("unstored operator identity must not repost, got %v", err)
	}
}

func TestRepostOfRepostRejected(t *testing.T) {
	svc, _ := newTestService(t)
	original, err := svc.Create(context.Background(), author, CreateRequest{Title: "Original", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Transition(context.Background(), author, original.ID, StatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}
	repost, err := svc.Repost(context.Background(), reader, original.ID, "")
	if err != nil {
		t.Fatalf("repost: %v", err)
	}
	if _, err := svc.Repost(context.Background(), author, repost.ID, ""); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("repost chains should be rejected, got %v", err)
	}
}

func TestDeleteBoundToOwnership(t *testing.T) {
	svc, repo := newTestService(t)
	post, err := svc.Create(context.Background(), author, CreateRequest{Title: "Mine", Content: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), reader, post.ID); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("non-owner delete should be denied, got %v", err)
	}
	if err := svc.Delete(context.Background(), author, post.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, ok := repo.posts[post.ID]; ok {
		t.Fatal("post should be gone")
	}
}
