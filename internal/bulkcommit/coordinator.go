// Package bulkcommit writes edited rows back in bounded concurrent chunks and
// reconciles the outcome into the edit buffer.
package bulkcommit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/notify"
)

// DefaultChunkSize bounds the number of concurrent row requests.
const DefaultChunkSize = 5

var (
	// ErrClosed is returned once the owning table has gone away.
	ErrClosed = errors.New("bulkcommit: coordinator closed")
	// ErrRowBusy is recorded for rows that already have a commit in flight.
	ErrRowBusy = errors.New("bulkcommit: row commit already in flight")
)

// Config wires a coordinator to one table.
type Config struct {
	Table     string
	Buffer    *editbuffer.Buffer
	Updater   RowUpdater
	Refresher Refreshable
	Notifier  notify.Notifier
	Resolver  Resolver
	Observer  Observer
	Logger    *slog.Logger
	ChunkSize int
}

// Coordinator commits rows for a single table instance.
type Coordinator struct {
	cfg    Config
	closed atomic.Bool
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Buffer == nil {
		return nil, errors.New("bulkcommit: buffer required")
	}
	if cfg.Updater == nil {
		return nil, errors.New("bulkcommit: updater required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{cfg: cfg}, nil
}

// RowFailure describes a row that stayed in edit mode.
type RowFailure struct {
	Row   editbuffer.RowID `json:"row_id"`
	Error string           `json:"error"`
	Err   error            `json:"-"`
}

// Report summarises a commit.
type Report struct {
	Committed []editbuffer.RowID `json:"committed"`
	Failed    []RowFailure       `json:"failed"`
	Chunks    int                `json:"chunks"`
}

// OK reports whether every row was written.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Rows is the number of rows the commit covered.
func (r Report) Rows() int {
	return len(r.Committed) + len(r.Failed)
}

// Close suppresses every later state update. Row requests already running
// are left to finish; chunks that have not started are skipped.
func (c *Coordinator) Close() {
	c.closed.Store(true)
}

// Closed reports whether Close was called.
func (c *Coordinator) Closed() bool {
	return c.closed.Load()
}

// Commit writes the drafts of the listed rows. An empty selection does
// nothing. Rows that fail keep their drafts and stay in edit mode.
func (c *Coordinator) Commit(ctx context.Context, ids ...editbuffer.RowID) (Report, error) {
	if len(ids) == 0 {
		return Report{}, nil
	}
	if c.closed.Load() {
		return Report{}, ErrClosed
	}
	return c.run(ctx, c.cfg.Buffer.CommitPrepare(ids...))
}

// Submit writes patches that were not captured through the buffer, such as
// a bulk price applied to a whole category.
func (c *Coordinator) Submit(ctx context.Context, patches []editbuffer.Patch) (Report, error) {
	if len(patches) == 0 {
		return Report{}, nil
	}
	if c.closed.Load() {
		return Report{}, ErrClosed
	}
	return c.run(ctx, patches)
}

func (c *Coordinator) run(ctx context.Context, patches []editbuffer.Patch) (Report, error) {
	if len(patches) == 0 {
		return Report{}, nil
	}
	start := time.Now()
	buf := c.cfg.Buffer

	var report Report
	acquired, busy := buf.AcquireLoading(rowIDs(patches)...)
	for _, id := range busy {
		report.Failed = append(report.Failed, failure(id, ErrRowBusy))
	}
	patches = onlyRows(patches, acquired)

	buf.SetAllLoading(true)
	defer func() {
		if c.closed.Load() {
			return
		}
		buf.SetLoading(false, acquired...)
		buf.SetAllLoading(false)
	}()

	// Requests outlive the caller's cancellation; only unstarted chunks stop.
	reqCtx := context.WithoutCancel(ctx)
	size := c.cfg.ChunkSize
	for offset := 0; offset < len(patches); offset += size {
		end := min(offset+size, len(patches))
		if c.closed.Load() {
			return report, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			for _, p := range patches[offset:] {
				report.Failed = append(report.Failed, failure(p.ID, err))
			}
			break
		}
		chunk := patches[offset:end]
		errs := c.runChunk(reqCtx, chunk)
		report.Chunks++
		for i, err := range errs {
			if err != nil {
				report.Failed = append(report.Failed, failure(chunk[i].ID, err))
				continue
			}
			report.Committed = append(report.Committed, chunk[i].ID)
		}
	}

	if c.closed.Load() {
		return report, ErrClosed
	}
	c.reconcile(reqCtx, report)
	c.observe(report, time.Since(start))
	return report, nil
}

func (c *Coordinator) runChunk(ctx context.Context, chunk []editbuffer.Patch) []error {
	errs := make([]error, len(chunk))
	var g errgroup.Group
	for i, patch := range chunk {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					c.cfg.Logger.Error("bulk commit row panic", slog.String("table", c.cfg.Table), slog.String("row", string(patch.ID)), slog.Any("panic", r))
					errs[i] = &TransientError{Row: patch.ID, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			errs[i] = c.commitRow(ctx, patch)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (c *Coordinator) commitRow(ctx context.Context, patch editbuffer.Patch) error {
	if c.cfg.Resolver != nil {
		resolved, err := c.cfg.Resolver(ctx, patch)
		if err != nil {
			return err
		}
		patch = resolved
	}
	if err := c.cfg.Updater.UpdateRow(ctx, patch); err != nil {
		return &TransientError{Row: patch.ID, Err: err}
	}
	return nil
}

func (c *Coordinator) reconcile(ctx context.Context, report Report) {
	logger := c.cfg.Logger.With(slog.String("table", c.cfg.Table))
	if len(report.Committed) > 0 {
		c.cfg.Buffer.Discard(report.Committed...)
		if c.cfg.Refresher != nil {
			if err := c.cfg.Refresher.Refresh(ctx); err != nil {
				logger.Warn("bulk commit refresh", slog.Any("error", err))
			}
		}
	}

	note := notify.Notification{
		Kind:      notify.KindSuccess,
		Table:     c.cfg.Table,
		Committed: len(report.Committed),
	}
	if !report.OK() {
		note.Kind = notify.KindError
		for _, f := range report.Failed {
			note.Failed = append(note.Failed, string(f.Row))
			note.Errors = append(note.Errors, f.Error)
		}
		logger.Warn("bulk commit partial failure",
			slog.Int("committed", len(report.Committed)),
			slog.Int("failed", len(report.Failed)),
		)
	} else {
		logger.Info("bulk commit", slog.Int("committed", len(report.Committed)), slog.Int("chunks", report.Chunks))
	}
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Notify(ctx, note)
	}
}

func (c *Coordinator) observe(report Report, elapsed time.Duration) {
	if c.cfg.Observer == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case len(report.Committed) == 0:
		outcome = OutcomeFailed
	case !report.OK():
		outcome = OutcomePartial
	}
	c.cfg.Observer.ObserveCommit(c.cfg.Table, outcome, report.Rows(), elapsed)
}

func failure(id editbuffer.RowID, err error) RowFailure {
	return RowFailure{Row: id, Error: err.Error(), Err: err}
}

func rowIDs(patches []editbuffer.Patch) []editbuffer.RowID {
	ids := make([]editbuffer.RowID, len(patches))
	for i, p := range patches {
		ids[i] = p.ID
	}
	return ids
}

func onlyRows(patches []editbuffer.Patch, keep []editbuffer.RowID) []editbuffer.Patch {
	if len(keep) == len(patches) {
		return patches
	}
	allowed := make(map[editbuffer.RowID]struct{}, len(keep))
	for _, id := range keep {
		allowed[id] = struct{}{}
	}
	out := make([]editbuffer.Patch, 0, len(keep))
	for _, p := range patches {
		if _, ok := allowed[p.ID]; ok {
			out = append(out, p)
			delete(allowed, p.ID)
		}
	}
	return out
}

// String renders the report for logs.
func (r Report) String() string {
	return fmt.Sprintf("committed=%d failed=%d chunks=%d", len(r.Committed), len(r.Failed), r.Chunks)
}
