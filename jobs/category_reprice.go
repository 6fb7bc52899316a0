package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/pricedesk/internal/bulkcommit"
	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	jobmetrics "github.com/odyssey-erp/pricedesk/internal/jobs"
	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PatchSource builds the patches of a category reprice.
type PatchSource interface {
	CategoryPatches(ctx context.Context, tableID, categoryID int64, desc pricing.ChangeDescriptor) ([]editbuffer.Patch, error)
}

// Submitter writes patches through the bulk commit pipeline.
type Submitter interface {
	Submit(ctx context.Context, patches []editbuffer.Patch) (bulkcommit.Report, error)
}

// IdempotencyStore records processed reprice keys.
type IdempotencyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// CategoryRepriceJob handles TaskCategoryReprice.
type CategoryRepriceJob struct {
	Patches     PatchSource
	Submitter   Submitter
	Idempotency IdempotencyStore
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// Handle executes the category reprice.
func (j *CategoryRepriceJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Patches == nil || j.Submitter == nil {
		return errors.New("category reprice: dependencies not configured")
	}
	var payload CategoryRepricePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("category reprice: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.log().With(
		slog.Int64("price_table_id", payload.PriceTableID),
		slog.Int64("category_id", payload.CategoryID),
	)

	tracker := j.metrics().Track(TaskCategoryReprice)
	var resultErr error
	defer func() {
		tracker.End(resultErr)
	}()

	if payload.IdempotencyKey != "" && j.Idempotency != nil {
		if err := j.Idempotency.CheckAndInsert(ctx, payload.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				logger.Info("category reprice already processed", slog.String("key", payload.IdempotencyKey))
				return nil
			}
			resultErr = err
			return resultErr
		}
	}

	patches, err := j.Patches.CategoryPatches(ctx, payload.PriceTableID, payload.CategoryID, payload.Descriptor())
	if err != nil {
		if errors.Is(err, pricing.ErrValidation) || errors.Is(err, shared.ErrInvalidID) {
			resultErr = fmt.Errorf("category reprice: %v: %w", err, asynq.SkipRetry)
			return resultErr
		}
		resultErr = j.rollback(ctx, payload, err)
		return resultErr
	}
	if len(patches) == 0 {
		logger.Info("category reprice matched no items")
		return nil
	}

	report, err := j.Submitter.Submit(ctx, patches)
	if err != nil {
		resultErr = j.rollback(ctx, payload, err)
		return resultErr
	}
	j.metrics().AddRows(TaskCategoryReprice, len(report.Committed), len(report.Failed))
	if !report.OK() {
		logger.Warn("category reprice partial failure", slog.String("report", report.String()))
		resultErr = j.rollback(ctx, payload, fmt.Errorf("category reprice: %d of %d rows failed", len(report.Failed), report.Rows()))
		return resultErr
	}
	logger.Info("category reprice committed", slog.String("report", report.String()))
	return resultErr
}

// rollback frees the idempotency key so the retry can run again.
func (j *CategoryRepriceJob) rollback(ctx context.Context, payload CategoryRepricePayload, cause error) error {
	if payload.IdempotencyKey == "" || j.Idempotency == nil {
		return cause
	}
	if err := j.Idempotency.Delete(ctx, payload.IdempotencyKey); err != nil {
		j.log().Error("release idempotency key", slog.String("key", payload.IdempotencyKey), slog.Any("error", err))
	}
	return cause
}

func (j *CategoryRepriceJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CategoryRepriceJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCategoryReprice))
	}
	return slog.Default().With(slog.String("job", TaskCategoryReprice))
}
