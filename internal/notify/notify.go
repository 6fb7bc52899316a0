// Package notify delivers commit outcome notifications to the user facing layer.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Kind distinguishes success from error toasts.
type Kind string

const (
	// KindSuccess reports a fully successful batch.
	KindSuccess Kind = "success"
	// KindError reports a batch with at least one failed row.
	KindError Kind = "error"
)

// Notification describes the outcome of one bulk commit.
type Notification struct {
	Kind      Kind     `json:"kind"`
	Table     string   `json:"table"`
	Committed int      `json:"committed"`
	Failed    []string `json:"failed,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// Notifier receives notifications. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

// Notify forwards n to every non-nil notifier.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, next := range m {
		if next != nil {
			next.Notify(ctx, n)
		}
	}
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n at info level for success and warn level for errors.
func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("table", n.Table),
		slog.Int("committed", n.Committed),
		slog.Int("failed", len(n.Failed)),
	}
	if n.Kind == KindError {
		logger.WarnContext(ctx, n.message(), append(attrs, slog.Any("errors", n.Errors))...)
		return
	}
	logger.InfoContext(ctx, n.message(), attrs...)
}

func (n Notification) message() string {
	if n.Message != "" {
		return n.Message
	}
	return "commit " + string(n.Kind)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify appends n.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}
