// Package editbuffer tracks which table rows are being edited and the draft
// values captured for them.
package editbuffer

import (
	"errors"
	"sort"
	"sync"
)

// LoadingAll is the reserved loading key for whole-batch operations.
const LoadingAll = "all"

var (
	// ErrRowLocked is returned when a row with a commit in flight is edited.
	ErrRowLocked = errors.New("editbuffer: row has a commit in flight")
	// ErrNotEditing is returned when a field is written on a row in view mode.
	ErrNotEditing = errors.New("editbuffer: row is not in edit mode")
	// ErrEmptyRowID is returned for blank row identifiers.
	ErrEmptyRowID = errors.New("editbuffer: row id required")
	// ErrReservedRowID is returned for a row id equal to LoadingAll.
	ErrReservedRowID = errors.New("editbuffer: row id is reserved")
)

// RowID identifies a table row.
type RowID string

// Draft holds the fields the user changed on a row.
type Draft map[string]any

// Patch is the update body for one row: its id plus the touched fields.
type Patch struct {
	ID     RowID `json:"id"`
	Fields Draft `json:"fields"`
}

// RowState is the per-row position in the edit state machine.
type RowState string

const (
	// StateView renders the row as static display.
	StateView RowState = "view"
	// StateEditing renders the row as inputs.
	StateEditing RowState = "editing"
)

// Buffer is owned by a single table instance. It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	editing map[RowID]struct{}
	drafts  map[RowID]Draft
	loading map[RowID]bool
	batches int
}

// New constructs an empty buffer.
func New() *Buffer {
	return &Buffer{
		editing: make(map[RowID]struct{}),
		drafts:  make(map[RowID]Draft),
		loading: make(map[RowID]bool),
	}
}

// EnterEditMode moves a row into edit mode. Entering twice keeps the
// existing draft; seed only initialises a fresh entry.
func (b *Buffer) EnterEditMode(id RowID, seed Draft) error {
	if err := checkRowID(id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loading[id] {
		return ErrRowLocked
	}
	b.editing[id] = struct{}{}
	if _, ok := b.drafts[id]; !ok {
		draft := make(Draft, len(seed))
		for k, v := range seed {
			draft[k] = v
		}
		b.drafts[id] = draft
	}
	return nil
}

// SetField records a draft value. The row must be in edit mode first;
// otherwise ErrNotEditing is returned and nothing is stored. Values are not
// validated here. Rows with a commit in flight are locked.
func (b *Buffer) SetField(id RowID, field string, value any) error {
	if id == "" {
		return ErrEmptyRowID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.editing[id]; !ok {
		return ErrNotEditing
	}
	if b.loading[id] {
		return ErrRowLocked
	}
	draft, ok := b.drafts[id]
	if !ok {
		draft = make(Draft)
		b.drafts[id] = draft
	}
	draft[field] = value
	return nil
}

// EffectiveValue returns the draft value for field, or fallback when the
// row has no draft for it.
func (b *Buffer) EffectiveValue(id RowID, field string, fallback any) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.drafts[id][field]; ok {
		return v
	}
	return fallback
}

// Discard leaves edit mode and drops the drafts of the given rows.
func (b *Buffer) Discard(ids ...RowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.editing, id)
		delete(b.drafts, id)
	}
}

// CommitPrepare builds one patch per listed row that is in edit mode.
// Only touched fields are included. State is left untouched; callers
// Discard after the remote write succeeds.
func (b *Buffer) CommitPrepare(ids ...RowID) []Patch {
	b.mu.Lock()
	defer b.mu.Unlock()
	patches := make([]Patch, 0, len(ids))
	seen := make(map[RowID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := b.editing[id]; !ok {
			continue
		}
		fields := make(Draft, len(b.drafts[id]))
		for k, v := range b.drafts[id] {
			fields[k] = v
		}
		patches = append(patches, Patch{ID: id, Fields: fields})
	}
	return patches
}

// ResetAll clears every draft and edit row, used when the dataset changes.
func (b *Buffer) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editing = make(map[RowID]struct{})
	b.drafts = make(map[RowID]Draft)
}

// State reports whether the row is in view or edit mode.
func (b *Buffer) State(id RowID) RowState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.editing[id]; ok {
		return StateEditing
	}
	return StateView
}

// Editing lists the rows in edit mode, sorted.
func (b *Buffer) Editing() []RowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]RowID, 0, len(b.editing))
	for id := range b.editing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Draft returns a copy of the row's draft and whether one exists.
func (b *Buffer) Draft(id RowID) (Draft, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	draft, ok := b.drafts[id]
	if !ok {
		return nil, false
	}
	out := make(Draft, len(draft))
	for k, v := range draft {
		out[k] = v
	}
	return out, true
}

func checkRowID(id RowID) error {
	switch id {
	case "":
		return ErrEmptyRowID
	case LoadingAll:
		return ErrReservedRowID
	}
	return nil
}
