package bulkcommit

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
)

// RowUpdater writes one row to the remote data source.
type RowUpdater interface {
	UpdateRow(ctx context.Context, patch editbuffer.Patch) error
}

// RowUpdaterFunc adapts a function to RowUpdater.
type RowUpdaterFunc func(ctx context.Context, patch editbuffer.Patch) error

// UpdateRow calls f.
func (f RowUpdaterFunc) UpdateRow(ctx context.Context, patch editbuffer.Patch) error {
	return f(ctx, patch)
}

// Refreshable reloads the dataset a table displays.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refreshable.
type RefreshFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// Resolver turns a draft patch into the body sent to the updater, for
// example by running pricing fields through the engine. A resolver error
// fails the row without a remote call.
type Resolver func(ctx context.Context, patch editbuffer.Patch) (editbuffer.Patch, error)

// Observer receives one sample per finished batch.
type Observer interface {
	ObserveCommit(table, outcome string, rows int, elapsed time.Duration)
}

// Outcome labels passed to Observer.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// TransientError wraps a failure reported by the updater for one row.
type TransientError struct {
	Row editbuffer.RowID
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("bulkcommit: row %s: %v", e.Row, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
