package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskIdempotencyCleanup prunes old reprice idempotency keys.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// DefaultKeyRetention keeps keys for a week.
const DefaultKeyRetention = 7 * 24 * time.Hour

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask builds the cron task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	if retention <= 0 {
		retention = DefaultKeyRetention
	}
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// KeyCleaner removes keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob handles TaskIdempotencyCleanup.
type IdempotencyCleanupJob struct {
	Store  KeyCleaner
	Logger *slog.Logger
}

// Handle runs one cleanup pass.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: store not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("idempotency cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = DefaultKeyRetention
	}
	tracker := defaultJobMetrics.Track(TaskIdempotencyCleanup)
	err := tracker.End(j.Store.Cleanup(ctx, payload.Retention))
	if err != nil {
		return fmt.Errorf("idempotency cleanup: %w", err)
	}
	if j.Logger != nil {
		j.Logger.Info("idempotency keys pruned", slog.Duration("retention", payload.Retention))
	}
	return nil
}
