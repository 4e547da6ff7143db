// Package jobs wires background task processing: the lifecycle cascade
// replay and periodic maintenance run through Asynq on Redis.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/quillpost/quillpost/internal/lifecycle"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeLifecycleCascade replays a partially failed account cascade.
	TaskTypeLifecycleCascade = "lifecycle:cascade"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// CascadePayload identifies the account and direction of a cascade replay.
type CascadePayload struct {
	UserID    int64               `json:"user_id"`
	Direction lifecycle.Direction `json:"direction"`
}

// NewCascadeTask constructs an Asynq task for a cascade replay.
func NewCascadeTask(payload CascadePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeLifecycleCascade, data, asynq.MaxRetry(10)), nil
}

// NewIdempotencyCleanupTask constructs the maintenance task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}
