package interactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/shared"
)

// Repository provides PostgreSQL backed persistence. A partial unique index
// on (user_id, post_id) WHERE type = 'like' AND is_active enforces at most one
// active like per user and post; the 23505 from a lost race surfaces as
// shared.ErrDuplicate.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const interactionColumns = `i.id, i.user_id, i.post_id, i.type, i.content, i.parent_comment_id,
	i.is_active, u.role, p.author_id, p.status, i.created_at, i.updated_at`

const interactionJoins = `
	FROM interactions i
	JOIN users u ON u.id = i.user_id
	JOIN posts p ON p.id = i.post_id`

// Create inserts an interaction row.
func (r *Repository) Create(ctx context.Context, in *Interaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO interactions (user_id, post_id, type, content, parent_comment_id, is_active)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, 0), $6)
		RETURNING id, created_at, updated_at`,
		in.UserID, in.PostID, in.Type, in.Content, in.ParentCommentID, in.IsActive,
	).Scan(&in.ID, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// Get fetches an interaction with its author role and parent post context.
func (r *Repository) Get(ctx context.Context, id int64) (*Interaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+interactionColumns+interactionJoins+` WHERE i.id = $1`, id)
	in, err := scanInteraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// ActiveLike returns the actor's active like on a post, if any.
func (r *Repository) ActiveLike(ctx context.Context, userID, postID int64) (*Interaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+interactionColumns+interactionJoins+`
		WHERE i.user_id = $1 AND i.post_id = $2 AND i.type = 'like' AND i.is_active`,
		userID, postID)
	in, err := scanInteraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// ListForPost returns active interactions on a post, newest first.
func (r *Repository) ListForPost(ctx context.Context, postID int64, typ Type, page, perPage int) ([]Interaction, int, error) {
	where := ` WHERE i.post_id = $1 AND i.is_active`
	args := []any{postID}
	if typ != "" {
		args = append(args, typ)
		where += ` AND i.type = $2`
	}
	return r.list(ctx, where, args, page, perPage)
}

// ListByUser returns a user's active interactions whose parent post passes the
// compiled visibility filter.
func (r *Repository) ListByUser(ctx context.Context, userID int64, filter authz.QueryFilter, page, perPage int) ([]Interaction, int, error) {
	where := ` WHERE i.user_id = $1 AND i.is_active`
	args := []any{userID}
	switch filter.Kind {
	case authz.FilterPublishedOnly:
		where += ` AND p.status = 'published'`
	case authz.FilterOwned:
		args = append(args, filter.OwnerID)
		where += ` AND p.author_id = $2`
	case authz.FilterPublishedOrOwned:
		args = append(args, filter.OwnerID)
		where += ` AND (p.status = 'published' OR p.author_id = $2)`
	}
	return r.list(ctx, where, args, page, perPage)
}

func (r *Repository) list(ctx context.Context, where string, args []any, page, perPage int) ([]Interaction, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+interactionJoins+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, `
		SELECT `+interactionColumns+interactionJoins+where+`
		ORDER BY i.created_at DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// UpdateContent replaces a comment's content.
func (r *Repository) UpdateContent(ctx context.Context, id int64, content string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE interactions SET content = $2, updated_at = NOW() WHERE id = $1`, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE interactions SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInteraction(row rowScanner) (*Interaction, error) {
	var in Interaction
	var content *string
	var parentID *int64
	if err := row.Scan(
		&in.ID, &in.UserID, &in.PostID, &in.Type, &content, &parentID,
		&in.IsActive, &in.UserRole, &in.PostAuthorID, &in.PostStatus,
		&in.CreatedAt, &in.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if content != nil {
		in.Content = *content
	}
	if parentID != nil {
		in.ParentCommentID = *parentID
	}
	return &in, nil
}

var _ RepositoryPort = (*Repository)(nil)
