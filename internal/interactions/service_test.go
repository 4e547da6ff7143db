package interactions

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/posts"
	"github.com/quillpost/quillpost/internal/shared"
)

type stubRepo struct {
	rows      map[int64]*Interaction
	nextID    int64
	createErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{rows: make(map[int64]*Interaction), nextID: 1}
}

func (s *stubRepo) Create(_ context.Context, in *Interaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	if in.Type == TypeLike {
		for _, row := range s.rows {
			if row.Type == TypeLike && row.IsActive && row.UserID == in.UserID && row.PostID == in.PostID {
				return shared.ErrDuplicate
			}
		}
	}
	in.ID = s.nextID
	s.nextID++
	clone := *in
	s.rows[in.ID] = &clone
	return nil
}

func (s *stubRepo) Get(_ context.Context, id int64) (*Interaction, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (s *stubRepo) ActiveLike(_ context.Context, userID, postID int64) (*Interaction, error) {
	for _, row := range s.rows {
		if row.Type == TypeLike && row.IsActive && row.UserID == userID && row.PostID == postID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) ListForPost(_ context.Context, postID int64, typ Type, _, _ int) ([]Interaction, int, error) {
	var result []Interaction
	for _, row := range s.rows {
		if row.PostID != postID || !row.IsActive {
			continue
		}
		if typ != "" && row.Type != typ {
			continue
		}
		result = append(result, *row)
	}
	return result, len(result), nil
}

func (s *stubRepo) ListByUser(_ context.Context, userID int64, _ authz.QueryFilter, _, _ int) ([]Interaction, int, error) {
	var result []Interaction
	for _, row := range s.rows {
		if row.UserID == userID && row.IsActive {
			result = append(result, *row)
		}
	}
	return result, len(result), nil
}

func (s *stubRepo) UpdateContent(_ context.Context, id int64, content string) error {
	row, ok := s.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	row.Content = content
	return nil
}

func (s *stubRepo) SetActive(_ context.Context, id int64, active bool) error {
	row, ok := s.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	row.IsActive = active
	return nil
}

type stubPosts struct {
	posts    map[int64]*posts.Post
	counters map[string]int
}

func newStubPosts() *stubPosts {
	return &stubPosts{posts: make(map[int64]*posts.Post), counters: make(map[string]int)}
}

func (s *stubPosts) Get(_ context.Context, id int64) (*posts.Post, error) {
	post, ok := s.posts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *post
	return &clone, nil
}

func (s *stubPosts) IncrementCounter(_ context.Context, id int64, field posts.CounterField, delta int) error {
	s.counters[string(field)] += delta
	return nil
}

func newTestService(t *testing.T) (*Service, *stubRepo, *stubPosts) {
	t.Helper()
	engine, err := authz.NewDefault()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	repo := newStubRepo()
	postStore := newStubPosts()
	svc := NewService(repo, postStore, engine, nil, slog.Default())
	return svc, repo, postStore
}

var (
	postOwner = authz.Actor{ID: 10, Role: authz.RoleUser, IsActive: true}
	visitor   = authz.Actor{ID: 11, Role: authz.RoleUser, IsActive: true}
)

func seedPost(store *stubPosts, id int64, status posts.Status) {
	store.posts[id] = &posts.Post{
		ID:         id,
		AuthorID:   postOwner.ID,
		AuthorRole: string(authz.RoleUser),
		Title:      "seed",
		Status:     status,
	}
}

func TestToggleLikeOnAndOff(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)

	liked, err := svc.ToggleLike(context.Background(), visitor, 1)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !liked {
		t.Fatal("first toggle should like")
	}
	if store.counters["likes_count"] != 1 {
		t.Fatalf("likes counter should be 1, got %d", store.counters["likes_count"])
	}

	liked, err = svc.ToggleLike(context.Background(), visitor, 1)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if liked {
		t.Fatal("second toggle should unlike")
	}
	if store.counters["likes_count"] != 0 {
		t.Fatalf("likes counter should return to 0, got %d", store.counters["likes_count"])
	}
}

func TestToggleLikeLostInsertRace(t *testing.T) {
	svc, repo, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)

	// The unique index rejects the insert: a concurrent toggle liked the post
	// between our existence check and the write. The winner owns the counter
	// bump; the loser just reports the liked state.
	repo.createErr = shared.ErrDuplicate
	liked, err := svc.ToggleLike(context.Background(), visitor, 1)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !liked {
		t.Fatal("losing the insert race still means the post is liked")
	}
	if store.counters["likes_count"] != 0 {
		t.Fatalf("loser must not bump the counter, got %d", store.counters["likes_count"])
	}
}

func TestOperatorCannotAuthorInteractions(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)
	operator := authz.Actor{ID: -1, Role: authz.RoleSuperadmin, IsActive: true}

	if _, err := svc.ToggleLike(context.Background(), operator, 1); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("unstored operator identity must not like posts, got %v", err)
	}
	if _, err := svc.CreateComment(context.Background(), operator, 1, "hi", 0); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("unstored operator identity must not comment, got %v", err)
	}
}

func TestToggleLikeRejectedOnDraft(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusDraft)

	if _, err := svc.ToggleLike(context.Background(), postOwner, 1); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("liking a draft should be denied even for its author, got %v", err)
	}
}

func TestCreateCommentValidatesParent(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)
	seedPost(store, 2, posts.StatusPublished)

	parent, err := svc.CreateComment(context.Background(), visitor, 1, "first", 0)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if _, err := svc.CreateComment(context.Background(), postOwner, 1, "reply", parent.ID); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if _, err := svc.CreateComment(context.Background(), postOwner, 2, "cross-post reply", parent.ID); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("reply must target a comment on the same post, got %v", err)
	}

	if err := svc.Delete(context.Background(), visitor, parent.ID); err != nil {
		t.Fatalf("delete parent: %v", err)
	}
	if _, err := svc.CreateComment(context.Background(), postOwner, 1, "late reply", parent.ID); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("reply to a deleted comment should fail, got %v", err)
	}
}

func TestCommentCountTracksLifecycle(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)

	comment, err := svc.CreateComment(context.Background(), visitor, 1, "hello", 0)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if store.counters["comments_count"] != 1 {
		t.Fatalf("comments counter should be 1, got %d", store.counters["comments_count"])
	}
	if err := svc.Delete(context.Background(), visitor, comment.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.counters["comments_count"] != 0 {
		t.Fatalf("comments counter should be 0, got %d", store.counters["comments_count"])
	}
}

func TestPostOwnerModeratesComments(t *testing.T) {
	svc, repo, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)

	comment, err := svc.CreateComment(context.Background(), visitor, 1, "rude", 0)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	bystander := authz.Actor{ID: 12, Role: authz.RoleUser, IsActive: true}
	if err := svc.Delete(context.Background(), bystander, comment.ID); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("bystander must not delete the comment, got %v", err)
	}

	if err := svc.Delete(context.Background(), postOwner, comment.ID); err != nil {
		t.Fatalf("post owner should delete comments on own post: %v", err)
	}
	if repo.rows[comment.ID].IsActive {
		t.Fatal("comment should be inactive after deletion")
	}
}

func TestUpdateCommentOwnerOnly(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)

	comment, err := svc.CreateComment(context.Background(), visitor, 1, "v1", 0)
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}

	if _, err := svc.UpdateComment(context.Background(), postOwner, comment.ID, "edited"); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("post owner must not edit someone else's comment, got %v", err)
	}
	updated, err := svc.UpdateComment(context.Background(), visitor, comment.ID, "v2")
	if err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if updated.Content != "v2" {
		t.Fatalf("content not updated: %q", updated.Content)
	}
}

func TestSummarizeAggregatesCounts(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusPublished)

	if _, err := svc.ToggleLike(context.Background(), visitor, 1); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, err := svc.CreateComment(context.Background(), visitor, 1, "one", 0); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := svc.CreateComment(context.Background(), postOwner, 1, "two", 0); err != nil {
		t.Fatalf("comment: %v", err)
	}

	sum, err := svc.Summarize(context.Background(), authz.Anonymous(), 1)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.LikesCount != 1 || sum.CommentsCount != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(sum.RecentComments) != 2 {
		t.Fatalf("expected 2 recent comments, got %d", len(sum.RecentComments))
	}
}

func TestSummarizeFollowsPostVisibility(t *testing.T) {
	svc, _, store := newTestService(t)
	seedPost(store, 1, posts.StatusDraft)

	if _, err := svc.Summarize(context.Background(), visitor, 1); !errors.Is(err, shared.ErrAccessDenied) {
		t.Fatalf("draft summary should be denied, got %v", err)
	}
}

func TestHistoryRequiresIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, _, err := svc.History(context.Background(), authz.Anonymous(), 1, 20); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("anonymous history should deny opaquely, got %v", err)
	}
}
