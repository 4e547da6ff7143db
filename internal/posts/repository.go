package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/platform/db"
	"github.com/quillpost/quillpost/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const postColumns = `p.id, p.author_id, p.title, p.slug, p.content, p.excerpt, p.tags,
	p.status, p.previous_status, p.archived_by_deactivation,
	p.is_repost, p.original_post_id, p.repost_comment,
	p.likes_count, p.comments_count, p.reposts_count,
	u.role, p.created_at, p.updated_at`

// Create inserts a new post.
func (r *Repository) Create(ctx context.Context, post *Post) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO posts (author_id, title, slug, content, excerpt, tags, status,
			is_repost, original_post_id, repost_comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), $10)
		RETURNING id, created_at, updated_at`,
		post.AuthorID, post.Title, post.Slug, post.Content, post.Excerpt, post.Tags,
		post.Status, post.IsRepost, post.OriginalPostID, post.RepostComment,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
}

// Get fetches a post with its author's role resolved for moderation checks.
func (r *Repository) Get(ctx context.Context, id int64) (*Post, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

// List returns posts matching the compiled visibility filter, newest first.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Post, int, error) {
	where, args := compileFilter(req.Filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts p
		JOIN users u ON u.id = p.author_id`+where+`
		ORDER BY p.created_at DESC
		LIMIT $`+itoa(len(args)-1)+` OFFSET $`+itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Update persists mutable content fields.
func (r *Repository) Update(ctx context.Context, post *Post) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE posts
		SET title = $2, slug = $3, content = $4, excerpt = $5, tags = $6, updated_at = NOW()
		WHERE id = $1`,
		post.ID, post.Title, post.Slug, post.Content, post.Excerpt, post.Tags)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetStatus applies a direct lifecycle transition.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCascade removes a post, its interactions, reposts of it, and the
// interactions on those reposts, as one transaction.
func (r *Repository) DeleteCascade(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM interactions
			WHERE post_id = $1
			   OR post_id IN (SELECT id FROM posts WHERE original_post_id = $1 AND is_repost)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM posts WHERE original_post_id = $1 AND is_repost`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// IncrementCounter atomically adjusts a denormalized interaction counter.
func (r *Repository) IncrementCounter(ctx context.Context, id int64, field CounterField, delta int) error {
	switch field {
	case CounterLikes, CounterComments, CounterReposts:
	default:
		return fmt.Errorf("posts: unknown counter %q", field)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE posts SET `+string(field)+` = GREATEST(`+string(field)+` + $2, 0) WHERE id = $1`,
		id, delta)
	return err
}

// compileFilter turns the engine's query filter into a WHERE clause. The
// constraint must reach the query itself: filtering fetched rows would leak
// draft existence through pagination counts.
func compileFilter(f authz.QueryFilter) (string, []any) {
	switch f.Kind {
	case authz.FilterPublishedOnly:
		return ` WHERE p.status = 'published'`, nil
	case authz.FilterOwned:
		return ` WHERE p.author_id = $1`, []any{f.OwnerID}
	case authz.FilterPublishedOrOwned:
		return ` WHERE (p.status = 'published' OR p.author_id = $1)`, []any{f.OwnerID}
	}
	return ``, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var post Post
	var previous *string
	var originalID *int64
	if err := row.Scan(
		&post.ID, &post.AuthorID, &post.Title, &post.Slug, &post.Content, &post.Excerpt, &post.Tags,
		&post.Status, &previous, &post.ArchivedByDeactivation,
		&post.IsRepost, &originalID, &post.RepostComment,
		&post.LikesCount, &post.CommentsCount, &post.RepostsCount,
		&post.AuthorRole, &post.CreatedAt, &post.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if previous != nil {
		post.PreviousStatus = Status(*previous)
	}
	if originalID != nil {
		post.OriginalPostID = *originalID
	}
	return &post, nil
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

var _ RepositoryPort = (*Repository)(nil)
