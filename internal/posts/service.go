package posts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/shared"
)

// ListRequest describes a collection read. Filter comes from the decision
// engine and is compiled into the query before rows are fetched.
type ListRequest struct {
	Filter  authz.QueryFilter
	Page    int
	PerPage int
}

// RepositoryPort defines data access methods for posts.
type RepositoryPort interface {
	Create(ctx context.Context, post *Post) error
	Get(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context, req ListRequest) ([]Post, int, error)
	Update(ctx context.Context, post *Post) error
	SetStatus(ctx context.Context, id int64, status Status) error
	DeleteCascade(ctx context.Context, id int64) error
	IncrementCounter(ctx context.Context, id int64, field CounterField, delta int) error
}

// Service handles post business logic. Every operation takes the acting
// identity explicitly and runs it through the decision engine before any
// mutation.
type Service struct {
	repo   RepositoryPort
	engine *authz.Engine
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, engine: engine, audit: audit, logger: logger}
}

// CreateRequest carries the fields for a new post.
type CreateRequest struct {
	Title   string
	Content string
	Excerpt string
	Tags    []string
}

// Create stores a new draft owned by the actor.
func (s *Service) Create(ctx context.Context, actor authz.Actor, req CreateRequest) (*Post, error) {
	// The env-configured operator has no users row, so a post attributed to
	// its reserved ID would never resolve through the author join.
	if actor.ID < 0 {
		return nil, fmt.Errorf("%w: the operator account cannot author content", shared.ErrValidation)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title required", shared.ErrValidation)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content required", shared.ErrValidation)
	}

	post := &Post{
		AuthorID:   actor.ID,
		AuthorRole: string(actor.Role),
		Title:      title,
		Slug:       Slugify(title),
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		Tags:       req.Tags,
		Status:     StatusDraft,
	}

	dec, err := s.engine.Authorize(actor, authz.KindPosts, authz.ActionCreate, snapshotPtr(post))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Get fetches a single post, applying the conditional visibility rules.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id int64) (*Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dec, err := s.engine.Authorize(actor, post.Kind(), authz.ActionRead, snapshotPtr(post))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}
	return post, nil
}

// List returns posts visible to the actor. The engine compiles the
// visibility constraint into a query filter before any rows are fetched.
func (s *Service) List(ctx context.Context, actor authz.Actor, page, perPage int, mine bool) ([]Post, shared.Pagination, error) {
	kind := authz.KindPosts
	dec, err := s.engine.Authorize(actor, kind, authz.ActionRead, nil)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if !dec.Allowed {
		return nil, shared.Pagination{}, authz.DenyError(actor)
	}

	req := ListRequest{Page: page, PerPage: perPage}
	if dec.Filter != nil {
		req.Filter = *dec.Filter
	}
	if mine {
		if !actor.Identified() {
			return nil, shared.Pagination{}, authz.DenyError(actor)
		}
		// Owner view: every status, own posts only. A strict subset of
		// anything the compiled filter would have allowed.
		req.Filter = authz.QueryFilter{Kind: authz.FilterOwned, OwnerID: actor.ID}
	}

	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// UpdateRequest carries the mutable post fields.
type UpdateRequest struct {
	Title   *string
	Content *string
	Excerpt *string
	Tags    []string
}

// Update mutates post content on behalf of its owner or a moderator.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id int64, req UpdateRequest) (*Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dec, err := s.engine.Authorize(actor, post.Kind(), authz.ActionUpdate, snapshotPtr(post))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title required", shared.ErrValidation)
		}
		if title != post.Title {
			post.Title = title
			post.Slug = Slugify(title)
		}
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.Excerpt != nil {
		post.Excerpt = *req.Excerpt
	}
	if req.Tags != nil {
		post.Tags = req.Tags
	}

	if err := s.repo.Update(ctx, post); err != nil {
		return nil, err
	}
	s.recordModeration(ctx, actor, dec, "posts.update", post.ID)
	return post, nil
}

// Transition moves a post through its lifecycle on owner or moderator action.
func (s *Service) Transition(ctx context.Context, actor authz.Actor, id int64, to Status) (*Post, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, to)
	}
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dec, err := s.engine.Authorize(actor, post.Kind(), authz.ActionUpdate, snapshotPtr(post))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}
	if !CanTransition(post.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, post.Status, to)
	}
	if err := s.repo.SetStatus(ctx, post.ID, to); err != nil {
		return nil, err
	}
	post.Status = to
	s.recordModeration(ctx, actor, dec, "posts.transition", post.ID)
	return post, nil
}

// Repost shares an existing published post under the actor's authorship.
func (s *Service) Repost(ctx context.Context, actor authz.Actor, originalID int64, comment string) (*Post, error) {
	if actor.ID < 0 {
		return nil, fmt.Errorf("%w: the operator account cannot author content", shared.ErrValidation)
	}
	original, err := s.repo.Get(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original.IsRepost {
		return nil, fmt.Errorf("%w: cannot repost a repost", shared.ErrValidation)
	}

	// The conditional predicate evaluates the original post: reposting
	// requires it to be published, ownership notwithstanding.
	target := original.Snapshot()
	dec, err := s.engine.Authorize(actor, authz.KindReposts, authz.ActionCreate, &target)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, authz.DenyError(actor)
	}

	repost := &Post{
		AuthorID:       actor.ID,
		AuthorRole:     string(actor.Role),
		Title:          original.Title,
		Slug:           Slugify(original.Title),
		Status:         StatusPublished,
		IsRepost:       true,
		OriginalPostID: original.ID,
		RepostComment:  comment,
	}
	if err := s.repo.Create(ctx, repost); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementCounter(ctx, original.ID, CounterReposts, 1); err != nil {
		return nil, err
	}
	return repost, nil
}

// Delete removes a post together with its interactions, reposts, and the
// interactions on those reposts.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	dec, err := s.engine.Authorize(actor, post.Kind(), authz.ActionDelete, snapshotPtr(post))
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return authz.DenyError(actor)
	}
	if err := s.repo.DeleteCascade(ctx, post.ID); err != nil {
		return err
	}
	if post.IsRepost && post.OriginalPostID != 0 {
		if err := s.repo.IncrementCounter(ctx, post.OriginalPostID, CounterReposts, -1); err != nil {
			return err
		}
	}
	s.recordModeration(ctx, actor, dec, "posts.delete", post.ID)
	return nil
}

// recordModeration audits mutations performed under moderation privilege.
func (s *Service) recordModeration(ctx context.Context, actor authz.Actor, dec authz.Decision, action string, postID int64) {
	if s.audit == nil || dec.Mode != authz.ModeModerate {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "post",
		EntityID: fmt.Sprintf("%d", postID),
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit moderation", slog.Any("error", err))
	}
}

func snapshotPtr(p *Post) *authz.Resource {
	snap := p.Snapshot()
	return &snap
}
