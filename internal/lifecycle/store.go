package lifecycle

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillpost/quillpost/internal/platform/db"
)

// Store implements the cascade persistence over PostgreSQL. Every statement
// is written so that reapplying it is a no-op: the WHERE clauses only match
// rows the cascade has not touched yet.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ArchiveForDeactivation force-archives the user's non-archived posts,
// remembering each post's prior status. Posts the user archived themselves
// keep archived_by_deactivation = false and are left alone on reactivation.
func (s *Store) ArchiveForDeactivation(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET previous_status = status,
		    status = 'archived',
		    archived_by_deactivation = TRUE,
		    updated_at = NOW()
		WHERE author_id = $1
		  AND status <> 'archived'`, userID)
	return err
}

// RestoreAfterReactivation returns force-archived posts to their previous
// status.
func (s *Store) RestoreAfterReactivation(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET status = previous_status,
		    previous_status = NULL,
		    archived_by_deactivation = FALSE,
		    updated_at = NOW()
		WHERE author_id = $1
		  AND archived_by_deactivation
		  AND previous_status IS NOT NULL`, userID)
	return err
}

// DeactivateForUser hides the user's active interactions and decrements the
// counters on the affected posts, atomically.
func (s *Store) DeactivateForUser(ctx context.Context, userID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := adjustCounters(ctx, tx, userID, -1, `i.user_id = $1 AND i.is_active`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE interactions
			SET is_active = FALSE,
			    deactivated_by_cascade = TRUE,
			    updated_at = NOW()
			WHERE user_id = $1 AND is_active`, userID)
		return err
	})
}

// ReactivateForUser restores interactions the deactivation cascade hid.
// Interactions the user deleted themselves stay deleted.
func (s *Store) ReactivateForUser(ctx context.Context, userID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := adjustCounters(ctx, tx, userID, 1, `i.user_id = $1 AND NOT i.is_active AND i.deactivated_by_cascade`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE interactions
			SET is_active = TRUE,
			    deactivated_by_cascade = FALSE,
			    updated_at = NOW()
			WHERE user_id = $1 AND NOT is_active AND deactivated_by_cascade`, userID)
		return err
	})
}

// MarkDeactivated switches the account off and records the deactivation.
func (s *Store) MarkDeactivated(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_active = FALSE,
		    last_deactivated_at = NOW(),
		    deactivation_count = deactivation_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND is_active`, userID)
	return err
}

// MarkReactivated switches the account back on.
func (s *Store) MarkReactivated(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET is_active = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_active`, userID)
	return err
}

func adjustCounters(ctx context.Context, tx pgx.Tx, userID int64, sign int, where string) error {
	_, err := tx.Exec(ctx, `
		UPDATE posts p
		SET likes_count = GREATEST(p.likes_count + $2 * x.likes, 0),
		    comments_count = GREATEST(p.comments_count + $2 * x.comments, 0)
		FROM (
			SELECT i.post_id,
			       COUNT(*) FILTER (WHERE i.type = 'like') AS likes,
			       COUNT(*) FILTER (WHERE i.type = 'comment') AS comments
			FROM interactions i
			WHERE `+where+`
			GROUP BY i.post_id
		) x
		WHERE p.id = x.post_id`, userID, sign)
	return err
}

var (
	_ PostStore        = (*Store)(nil)
	_ InteractionStore = (*Store)(nil)
	_ AccountStore     = (*Store)(nil)
)
