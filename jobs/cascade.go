package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/quillpost/quillpost/internal/jobs"
	"github.com/quillpost/quillpost/internal/lifecycle"
)

// CascadeRunner is the part of the lifecycle coordinator the job needs.
type CascadeRunner interface {
	OnDeactivate(ctx context.Context, userID int64) error
	OnReactivate(ctx context.Context, userID int64) error
}

// CascadeJob replays account lifecycle cascades. The coordinator's steps are
// idempotent, so a replay after a mid-cascade crash finishes the remaining
// work without repeating what already applied.
type CascadeJob struct {
	Runner  CascadeRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCascadeJob initialises the cascade replay handler.
func NewCascadeJob(runner CascadeRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *CascadeJob {
	return &CascadeJob{Runner: runner, Logger: logger, Metrics: metrics}
}

// Handle executes one cascade replay.
func (j *CascadeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Runner == nil {
		return errors.New("cascade job: handler not configured")
	}
	var payload CascadePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID == 0 {
		return asynq.SkipRetry
	}

	var run func(context.Context, int64) error
	switch payload.Direction {
	case lifecycle.Deactivate:
		run = j.Runner.OnDeactivate
	case lifecycle.Reactivate:
		run = j.Runner.OnReactivate
	default:
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeLifecycleCascade)
	resultErr := tracker.End(run(ctx, payload.UserID))

	if resultErr != nil {
		if j.Logger != nil {
			j.Logger.Warn("cascade replay failed",
				slog.Int64("user_id", payload.UserID),
				slog.String("direction", string(payload.Direction)),
				slog.Any("error", resultErr))
		}
		return resultErr
	}
	if j.Logger != nil {
		j.Logger.Info("cascade replay complete",
			slog.Int64("user_id", payload.UserID),
			slog.String("direction", string(payload.Direction)))
	}
	return nil
}

// IdempotencyStore prunes processed keys. Satisfied by shared.IdempotencyStore.
type IdempotencyStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob removes idempotency keys past their retention.
type IdempotencyCleanupJob struct {
	Store     IdempotencyStore
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the maintenance handler.
func NewIdempotencyCleanupJob(store IdempotencyStore, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle prunes expired keys.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeIdempotencyCleanup)
	err := j.Store.Cleanup(ctx, j.Retention)
	if err != nil && j.Logger != nil {
		j.Logger.Warn("idempotency cleanup", slog.Any("error", err))
	}
	return tracker.End(err)
}
