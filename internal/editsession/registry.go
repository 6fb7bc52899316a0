// Package editsession keeps one edit buffer and commit coordinator per open
// table view, so a browser tab can drive inline edits over HTTP.
package editsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/pricedesk/internal/bulkcommit"
	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/notify"
)

// DefaultTTL closes sessions idle for longer than this.
const DefaultTTL = 30 * time.Minute

var (
	// ErrUnknownTable is returned when opening a session on an unbound table.
	ErrUnknownTable = errors.New("editsession: unknown table")
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("editsession: session not found")
)

// Validator checks a value before it is written into a draft.
type Validator func(ctx context.Context, row editbuffer.RowID, field string, value any, draft editbuffer.Draft) error

// Binding connects a table name to its write path.
type Binding struct {
	Table     string
	Updater   bulkcommit.RowUpdater
	Refresher bulkcommit.Refreshable
	Resolver  bulkcommit.Resolver
	Validate  Validator
}

// Options are shared by every session of a registry.
type Options struct {
	ChunkSize int
	TTL       time.Duration
	Notifier  notify.Notifier
	Observer  bulkcommit.Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Registry owns the open sessions.
type Registry struct {
	opts     Options
	mu       sync.Mutex
	bindings map[string]Binding
	sessions map[string]*Session
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		opts:     opts,
		bindings: make(map[string]Binding),
		sessions: make(map[string]*Session),
	}
}

// Bind registers a table. Binding the same table twice replaces it for new
// sessions.
func (r *Registry) Bind(b Binding) error {
	if b.Table == "" {
		return errors.New("editsession: table name required")
	}
	if b.Updater == nil {
		return fmt.Errorf("editsession: table %s: updater required", b.Table)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[b.Table] = b
	return nil
}

// Tables lists the bound table names.
func (r *Registry) Tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open starts a session on a bound table.
func (r *Registry) Open(table string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	buf := editbuffer.New()
	coord, err := bulkcommit.New(bulkcommit.Config{
		Table:     b.Table,
		Buffer:    buf,
		Updater:   b.Updater,
		Refresher: b.Refresher,
		Notifier:  r.opts.Notifier,
		Resolver:  b.Resolver,
		Observer:  r.opts.Observer,
		Logger:    r.opts.Logger,
		ChunkSize: r.opts.ChunkSize,
	})
	if err != nil {
		return nil, err
	}
	now := r.opts.Now()
	s := &Session{
		id:       uuid.NewString(),
		table:    b.Table,
		buffer:   buf,
		coord:    coord,
		validate: b.Validate,
		now:      r.opts.Now,
		openedAt: now,
		lastUsed: now,
	}
	r.sessions[s.id] = s
	r.opts.Logger.Debug("edit session opened", slog.String("session", s.id), slog.String("table", s.table))
	return s, nil
}

// Get returns an open session and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close unmounts a session. Commits still running finish without touching
// its state.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.coord.Close()
	r.opts.Logger.Debug("edit session closed", slog.String("session", id), slog.String("table", s.table))
	return nil
}

// Sweep closes sessions idle since before now minus the TTL and returns
// how many were closed.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.opts.TTL)
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range expired {
		s.coord.Close()
	}
	if len(expired) > 0 {
		r.opts.Logger.Info("edit sessions expired", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.opts.Now())
		}
	}
}
