package interactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/posts"
	"github.com/quillpost/quillpost/internal/shared"
)

// RepositoryPort defines data access methods for interactions.
type RepositoryPort interface {
	Create(ctx context.Context, in *Interaction) error
	Get(ctx context.Context, id int64) (*Interaction, error)
	ActiveLike(ctx context.Context, userID, postID int64) (*Interaction, error)
	ListForPost(ctx context.Context, postID int64, typ Type, page, perPage int) ([]Interaction, int, error)
	ListByUser(ctx context.Context, userID int64, filter authz.QueryFilter, page, perPage int) ([]Interaction, int, error)
	UpdateContent(ctx context.Context, id int64, content string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// PostsPort exposes the post operations interactions depend on. Satisfied by
// the posts repository.
type PostsPort interface {
	Get(ctx context.Context, id int64) (*posts.Post, error)
	IncrementCounter(ctx context.Context, id int64, field posts.CounterField, delta int) error
}

// Service handles interaction business logic.
type Service struct {
	repo   RepositoryPort
	posts  PostsPort
	engine *authz.Engine
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, postsPort PostsPort, engine *authz.Engine, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, posts: postsPort, engine: engine, audit: audit, logger: logger}
}

// ToggleLike flips the actor's like on a post. Returns the resulting state:
// true when the post ends up liked.
func (s *Service) ToggleLike(ctx context.Context, actor authz.Actor, postID int64) (bool, error) {
	// The env-configured operator has no users row; interactions attributed
	// to its reserved ID would never resolve through the user join.
	if actor.ID < 0 {
		return false, fmt.Errorf("%w: the operator account cannot author content", shared.ErrValidation)
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return false, err
	}

	existing, err := s.repo.ActiveLike(ctx, actor.ID, postID)
	switch {
	case err == nil:
		dec, err := s.engine.Authorize(actor, authz.KindLikes, authz.ActionDelete, snapshotPtr(existing))
		if err != nil {
			return false, err
		}
		if !dec.Allowed {
			return false, authz.DenyError(actor)
		}
		if err := s.repo.SetActive(ctx, existing.ID, false); err != nil {
			return false, err
		}
		if err := s.posts.IncrementCounter(ctx, postID, posts.CounterLikes, -1); err != nil {
			return false, err
		}
		return false, nil

	case errors.Is(err, shared.ErrNotFound):
		like := &Interaction{
			UserID:       actor.ID,
			PostID:       postID,
			Type:         TypeLike,
			IsActive:     true,
			UserRole:     string(actor.Role),
			PostAuthorID: post.AuthorID,
			PostStatus:   string(post.Status),
		}
		dec, err := s.engine.Authorize(actor, authz.KindLikes, authz.ActionCreate, snapshotPtr(like))
		if err != nil {
			return false, err
		}
		if !dec.Allowed {
			return false, authz.DenyError(actor)
		}
		if err := s.repo.Create(ctx, like); err != nil {
			// A concurrent toggle won the insert race. The post is liked and
			// the winner incremented the counter; nothing left to do.
			if errors.Is(err, shared.ErrDuplicate) {
				return true, nil
			}
			return false, err
		}
		if err := s.posts.IncrementCounter(ctx, postID, posts.CounterLikes, 1); err != nil {
			return false, err
		}
		return true, nil

	default:
		return false, err
	}
}

// CreateComment attaches a comment, optionally replying to an existing one.
func (s *Service) CreateComment(ctx context.Context, actor authz.Actor, postID int64, content string, parentCommentID int64) (*Interaction, error) {
	if actor.ID < 0 {
		return nil, fmt.Errorf("%w: the operator account cannot author content", shared.ErrValidation)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content required", shared.ErrValidation)
	}

	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	if parentCommentID != 0 {
		parent, err := s.repo.Get(ctx, parentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.Type != TypeComment || !parent.IsActive || parent.PostID != postID {
			return nil, fmt.Errorf("%w: parent comment unavailable", shared.ErrValidation)
		}
	}

	comment := &Interaction{
		UserID:          actor.ID,
		PostID:          postID,
		Type:            TypeComment,
		Content:         content,
		ParentCommentID: parentCommentID,
		IsActive:        true,
		UserRole:        string(actor.Role),
		PostAuthorID:    post.AuthorID,
		PostStatus:      string(post.Status),
	}
	dec, err := s.engine.Authorize(actor, authz.KindComments, authz.ActionCreate, snapshotPtr(comment))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, err
	}
	if err := s.posts.IncrementCounter(ctx, postID, posts.CounterComments, 1); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListForPost returns the active interactions on a post, optionally narrowed
// to a single type. Visibility follows the parent post.
func (s *Service) ListForPost(ctx context.Context, actor authz.Actor, postID int64, typ Type, page, perPage int) ([]Interaction, shared.Pagination, error) {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if typ != "" && !typ.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown interaction type %q", shared.ErrValidation, typ)
	}

	target := authz.Resource{Kind: authz.KindInteractions, Post: post.ParentContext()}
	dec, err := s.engine.Authorize(actor, authz.KindInteractions, authz.ActionRead, &target)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if !dec.Allowed {
		return nil, shared.Pagination{}, authz.DenyError(actor)
	}

	rows, total, err := s.repo.ListForPost(ctx, postID, typ, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Summary aggregates a post's interactions for its detail view.
type Summary struct {
	LikesCount     int
	CommentsCount  int
	RecentComments []Interaction
}

// Summarize loads like and comment totals plus the latest comments in one
// round trip for the caller. Visibility follows the parent post.
func (s *Service) Summarize(ctx context.Context, actor authz.Actor, postID int64) (*Summary, error) {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, err
	}

	target := authz.Resource{Kind: authz.KindInteractions, Post: post.ParentContext()}
	dec, err := s.engine.Authorize(actor, authz.KindInteractions, authz.ActionRead, &target)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	var sum Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, total, err := s.repo.ListForPost(ctx, postID, TypeLike, 1, 1)
		if err != nil {
			return err
		}
		sum.LikesCount = total
		return nil
	})
	g.Go(func() error {
		rows, total, err := s.repo.ListForPost(ctx, postID, TypeComment, 1, 5)
		if err != nil {
			return err
		}
		sum.RecentComments = rows
		sum.CommentsCount = total
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &sum, nil
}

// History returns the actor's own interactions. The engine's compiled filter
// constrains the parent posts so interactions on content that has since gone
// invisible to the actor drop out of the listing.
func (s *Service) History(ctx context.Context, actor authz.Actor, page, perPage int) ([]Interaction, shared.Pagination, error) {
	if !actor.Identified() {
		return nil, shared.Pagination{}, authz.DenyError(actor)
	}
	dec, err := s.engine.Authorize(actor, authz.KindInteractions, authz.ActionRead, nil)
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
	rows, total, err := s.repo.ListByUser(ctx, actor.ID, filter, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// UpdateComment edits a comment's content.
func (s *Service) UpdateComment(ctx context.Context, actor authz.Actor, id int64, content string) (*Interaction, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content required", shared.ErrValidation)
	}

	in, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Type != TypeComment || !in.IsActive {
		return nil, shared.ErrNotFound
	}

	dec, err := s.engine.Authorize(actor, authz.KindComments, authz.ActionUpdate, snapshotPtr(in))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	if err := s.repo.UpdateContent(ctx, in.ID, content); err != nil {
		return nil, err
	}
	in.Content = content
	return in, nil
}

// Delete deactivates an interaction and rolls back its counter.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	in, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !in.IsActive {
		return shared.ErrNotFound
	}

	dec, err := s.engine.Authorize(actor, in.Kind(), authz.ActionDelete, snapshotPtr(in))
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return authz.DenyError(actor)
	}

	if err := s.repo.SetActive(ctx, in.ID, false); err != nil {
		return err
	}
	counter := posts.CounterLikes
	if in.Type == TypeComment {
		counter = posts.CounterComments
	}
	if err := s.posts.IncrementCounter(ctx, in.PostID, counter, -1); err != nil {
		return err
	}
	s.recordModeration(ctx, actor, dec, "interactions.delete", in.ID)
	return nil
}

func (s *Service) recordModeration(ctx context.Context, actor authz.Actor, dec authz.Decision, action string, id int64) {
	if s.audit == nil || dec.Mode != authz.ModeModerate {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "interaction",
		EntityID: fmt.Sprintf("%d", id),
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit moderation", slog.Any("error", err))
	}
}

func snapshotPtr(in *Interaction) *authz.Resource {
	snap := in.Snapshot()
	return &snap
}
