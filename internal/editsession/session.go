package editsession

import (
	"context"
	"sync"
	"time"

	"github.com/odyssey-erp/pricedesk/internal/bulkcommit"
	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
)

// Session is one mounted table view.
type Session struct {
	id       string
	table    string
	buffer   *editbuffer.Buffer
	coord    *bulkcommit.Coordinator
	validate Validator
	now      func() time.Time
	openedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Table returns the bound table name.
func (s *Session) Table() string { return s.table }

// Dispatch applies a buffer command. Commit runs the bulk commit and
// returns its report; the other commands return a nil report.
func (s *Session) Dispatch(ctx context.Context, cmd editbuffer.Command) (*bulkcommit.Report, error) {
	if s.coord.Closed() {
		return nil, bulkcommit.ErrClosed
	}
	s.touch()
	switch c := cmd.(type) {
	case editbuffer.SetField:
		if c.Row != "" && s.buffer.State(c.Row) != editbuffer.StateEditing {
			return nil, editbuffer.ErrNotEditing
		}
		if s.validate != nil {
			draft, _ := s.buffer.Draft(c.Row)
			if err := s.validate(ctx, c.Row, c.Field, c.Value, draft); err != nil {
				return nil, err
			}
		}
		return nil, s.buffer.SetField(c.Row, c.Field, c.Value)
	case editbuffer.Commit:
		report, err := s.coord.Commit(ctx, c.Rows...)
		if err != nil {
			return nil, err
		}
		return &report, nil
	default:
		_, err := s.buffer.Dispatch(cmd)
		return nil, err
	}
}

// CommitAll commits every row currently in edit mode.
func (s *Session) CommitAll(ctx context.Context) (*bulkcommit.Report, error) {
	return s.Dispatch(ctx, editbuffer.Commit{Rows: s.buffer.Editing()})
}

// Reset drops every draft and leaves edit mode on all rows.
func (s *Session) Reset() error {
	if s.coord.Closed() {
		return bulkcommit.ErrClosed
	}
	s.touch()
	s.buffer.ResetAll()
	return nil
}

// Snapshot is the client visible state of a session.
type Snapshot struct {
	ID       string                                `json:"id"`
	Table    string                                `json:"table"`
	Editing  []editbuffer.RowID                    `json:"editing"`
	Drafts   map[editbuffer.RowID]editbuffer.Draft `json:"drafts"`
	Loading  map[string]bool                       `json:"loading"`
	OpenedAt time.Time                             `json:"opened_at"`
	LastUsed time.Time                             `json:"last_used"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	editing := s.buffer.Editing()
	drafts := make(map[editbuffer.RowID]editbuffer.Draft, len(editing))
	for _, id := range editing {
		if d, ok := s.buffer.Draft(id); ok {
			drafts[id] = d
		}
	}
	return Snapshot{
		ID:       s.id,
		Table:    s.table,
		Editing:  editing,
		Drafts:   drafts,
		Loading:  s.buffer.Loading(),
		OpenedAt: s.openedAt,
		LastUsed: s.idleSince(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
