// Package lifecycle coordinates the account deactivation and reactivation
// cascades. Each cascade is a short saga over posts, interactions and the
// account row; every step is idempotent so a partial failure can be replayed
// by the job worker without double-applying effects.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillpost/quillpost/internal/shared"
)

// PostStore archives and restores a user's posts.
type PostStore interface {
	ArchiveForDeactivation(ctx context.Context, userID int64) error
	RestoreAfterReactivation(ctx context.Context, userID int64) error
}

// InteractionStore hides and restores a user's likes and comments, keeping
// the denormalized counters on the affected posts in step.
type InteractionStore interface {
	DeactivateForUser(ctx context.Context, userID int64) error
	ReactivateForUser(ctx context.Context, userID int64) error
}

// AccountStore flips the account's activation state.
type AccountStore interface {
	MarkDeactivated(ctx context.Context, userID int64) error
	MarkReactivated(ctx context.Context, userID int64) error
}

// Locker serializes cascades per account. Concurrent deactivate and
// reactivate requests for one user must never interleave.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Replayer re-enqueues a cascade after a partial failure. Satisfied by the
// jobs client; optional.
type Replayer interface {
	EnqueueCascade(ctx context.Context, userID int64, direction Direction) error
}

// Direction names a cascade direction.
type Direction string

// Cascade directions.
const (
	Deactivate Direction = "deactivate"
	Reactivate Direction = "reactivate"
)

// LockTTL bounds how long a cascade may hold its per-user lock.
const LockTTL = 30 * time.Second

// Coordinator runs the cascades.
type Coordinator struct {
	posts        PostStore
	interactions InteractionStore
	accounts     AccountStore
	locker       Locker
	replayer     Replayer
	logger       *slog.Logger
}

// NewCoordinator builds a Coordinator instance.
func NewCoordinator(posts PostStore, interactions InteractionStore, accounts AccountStore, locker Locker, logger *slog.Logger) *Coordinator {
	return &Coordinator{posts: posts, interactions: interactions, accounts: accounts, locker: locker, logger: logger}
}

// SetReplayer attaches the queue used to replay partially failed cascades.
func (c *Coordinator) SetReplayer(r Replayer) {
	c.replayer = r
}

// OnDeactivate archives the user's posts, hides their interactions and marks
// the account inactive. Safe to call repeatedly.
func (c *Coordinator) OnDeactivate(ctx context.Context, userID int64) error {
	return c.run(ctx, userID, Deactivate, []step{
		{"archive posts", c.posts.ArchiveForDeactivation},
		{"deactivate interactions", c.interactions.DeactivateForUser},
		{"mark account", c.accounts.MarkDeactivated},
	})
}

// OnReactivate reverses a deactivation: posts return to their previous
// status, interactions come back and the account reactivates. Content the
// user archived or deleted themselves stays untouched.
func (c *Coordinator) OnReactivate(ctx context.Context, userID int64) error {
	return c.run(ctx, userID, Reactivate, []step{
		{"restore posts", c.posts.RestoreAfterReactivation},
		{"reactivate interactions", c.interactions.ReactivateForUser},
		{"mark account", c.accounts.MarkReactivated},
	})
}

type step struct {
	name  string
	apply func(ctx context.Context, userID int64) error
}

func (c *Coordinator) run(ctx context.Context, userID int64, direction Direction, steps []step) error {
	key := shared.LifecycleLockKey(userID)
	acquired, err := c.locker.Acquire(ctx, key, LockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: cascade already running for user %d", shared.ErrCascadeIncomplete, userID)
	}
	defer func() {
		if err := c.locker.Release(ctx, key); err != nil && c.logger != nil {
			c.logger.Warn("release lifecycle lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	for _, s := range steps {
		if err := s.apply(ctx, userID); err != nil {
			c.replay(ctx, userID, direction)
			return fmt.Errorf("%w: %s %s: %v", shared.ErrCascadeIncomplete, direction, s.name, err)
		}
	}
	if c.logger != nil {
		c.logger.Info("lifecycle cascade complete",
			slog.String("direction", string(direction)), slog.Int64("user_id", userID))
	}
	return nil
}

func (c *Coordinator) replay(ctx context.Context, userID int64, direction Direction) {
	if c.replayer == nil {
		return
	}
	if err := c.replayer.EnqueueCascade(ctx, userID, direction); err != nil && c.logger != nil {
		c.logger.Error("enqueue cascade replay",
			slog.String("direction", string(direction)), slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
