package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const userColumns = `id, username, email, password_hash, role, is_active,
	first_name, last_name, bio, last_deactivated_at, deactivation_count,
	created_at, updated_at`

// Create inserts a new account. Username and email collisions surface as
// shared.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, user *User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		user.Username, user.Email, user.PasswordHash, user.Role, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID fetches an account.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail fetches an account by its (lowercased) email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *Repository) get(ctx context.Context, where string, arg any) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, arg)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// List returns accounts matching the visibility filter. FilterOwned narrows
// to the caller's own row; a non-empty role narrows to that role.
func (r *Repository) List(ctx context.Context, filter authz.QueryFilter, role authz.Role, page, perPage int) ([]User, int, error) {
	where := ``
	var args []any
	if filter.Kind == authz.FilterOwned {
		args = append(args, filter.OwnerID)
		where = ` WHERE id = $1`
	}
	if role != "" {
		args = append(args, role)
		clause := fmt.Sprintf(`role = $%d`, len(args))
		if where == "" {
			where = ` WHERE ` + clause
		} else {
			where += ` AND ` + clause
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
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
		SELECT `+userColumns+` FROM users`+where+`
		ORDER BY id
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// UpdateProfile persists the mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, user *User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, bio = $4, updated_at = NOW()
		WHERE id = $1`,
		user.ID, user.FirstName, user.LastName, user.Bio)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetRole assigns a new role.
func (r *Repository) SetRole(ctx context.Context, id int64, role authz.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCascade destroys an account and everything hanging off it in one
// transaction: interactions by the user, interactions on the user's posts and
// reposts, the posts themselves, then the account row.
func (r *Repository) DeleteCascade(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM interactions
			WHERE user_id = $1
			   OR post_id IN (
					SELECT id FROM posts
					WHERE author_id = $1
					   OR (is_repost AND original_post_id IN (SELECT id FROM posts WHERE author_id = $1)))`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM posts
			WHERE is_repost AND original_post_id IN (SELECT id FROM posts WHERE author_id = $1)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE author_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var firstName, lastName, bio *string
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive,
		&firstName, &lastName, &bio, &user.LastDeactivatedAt, &user.DeactivationCount,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if firstName != nil {
		user.FirstName = *firstName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
	if bio != nil {
		user.Bio = *bio
	}
	return &user, nil
}

var _ RepositoryPort = (*Repository)(nil)
