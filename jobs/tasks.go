package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/pricetables"
	"github.com/odyssey-erp/pricedesk/internal/pricing"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCategoryReprice applies one change descriptor to every item of a category.
	TaskCategoryReprice = "pricetables:category_reprice"
	// idempotencyModule scopes reprice keys in the idempotency store.
	idempotencyModule = "pricetables.category_reprice"
)

// CategoryRepricePayload is the wire form of a category reprice.
type CategoryRepricePayload struct {
	PriceTableID   int64              `json:"price_table_id"`
	CategoryID     int64              `json:"category_id"`
	ChangeType     pricing.ChangeType `json:"change_type"`
	ChangeAmount   decimal.Decimal    `json:"change_amount"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// Descriptor returns the change carried by the payload.
func (p CategoryRepricePayload) Descriptor() pricing.ChangeDescriptor {
	return pricing.ChangeDescriptor{Type: p.ChangeType, Amount: p.ChangeAmount}
}

func payloadFromRequest(req pricetables.RepriceRequest) CategoryRepricePayload {
	return CategoryRepricePayload{
		PriceTableID:   req.PriceTableID,
		CategoryID:     req.CategoryID,
		ChangeType:     req.Descriptor.Type,
		ChangeAmount:   req.Descriptor.Amount,
		IdempotencyKey: req.IdempotencyKey,
	}
}

// NewCategoryRepriceTask constructs an Asynq task. Tasks carrying an
// idempotency key are also deduplicated by asynq for an hour.
func NewCategoryRepriceTask(payload CategoryRepricePayload) (*asynq.Task, error) {
	if payload.PriceTableID <= 0 || payload.CategoryID <= 0 {
		return nil, fmt.Errorf("jobs: category reprice: table and category required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(3)}
	if payload.IdempotencyKey != "" {
		opts = append(opts, asynq.TaskID(TaskCategoryReprice+":"+payload.IdempotencyKey), asynq.Retention(time.Hour))
	}
	return asynq.NewTask(TaskCategoryReprice, body, opts...), nil
}
