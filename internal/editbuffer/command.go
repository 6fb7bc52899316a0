package editbuffer

import "fmt"

// Command is a message dispatched to a Buffer by table cells.
type Command interface {
	command()
}

// EnterEdit puts a row in edit mode, optionally seeding its draft.
type EnterEdit struct {
	Row  RowID
	Seed Draft
}

// SetField writes one draft value.
type SetField struct {
	Row   RowID
	Field string
	Value any
}

// Discard cancels editing for rows.
type Discard struct {
	Rows []RowID
}

// Commit asks for the patches of rows ready to be written.
type Commit struct {
	Rows []RowID
}

func (EnterEdit) command() {}
func (SetField) command()  {}
func (Discard) command()   {}
func (Commit) command()    {}

// Dispatch applies cmd. Commit returns the prepared patches and leaves
// the buffer untouched; the other commands return nil patches.
func (b *Buffer) Dispatch(cmd Command) ([]Patch, error) {
	switch c := cmd.(type) {
	case EnterEdit:
		return nil, b.EnterEditMode(c.Row, c.Seed)
	case SetField:
		return nil, b.SetField(c.Row, c.Field, c.Value)
	case Discard:
		b.Discard(c.Rows...)
		return nil, nil
	case Commit:
		return b.CommitPrepare(c.Rows...), nil
	default:
		return nil, fmt.Errorf("editbuffer: unknown command %T", cmd)
	}
}
