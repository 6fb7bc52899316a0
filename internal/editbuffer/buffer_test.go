package editbuffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterEditThenDiscardRollsBack(t *testing.T) {
	b := New()
	require.NoError(t, b.EnterEditMode("7", Draft{"change_amount": "5"}))
	require.NoError(t, b.SetField("7", "change_type", "fixed_price"))

	b.Discard("7")

	assert.Equal(t, StateView, b.State("7"))
	assert.Equal(t, "0", b.EffectiveValue("7", "change_amount", "0"))
	assert.Equal(t, "discount_percentage", b.EffectiveValue("7", "change_type", "discount_percentage"))
	_, ok := b.Draft("7")
	assert.False(t, ok)
}

func TestSetFieldOverridesFallback(t *testing.T) {
	b := New()
	require.NoError(t, b.EnterEditMode("1", nil))
	require.NoError(t, b.SetField("1", "change_amount", 10))
	assert.Equal(t, 10, b.EffectiveValue("1", "change_amount", "0"))
}

func TestEffectiveValueWithoutDraft(t *testing.T) {
	b := New()
	assert.Equal(t, "fallback", b.EffectiveValue("missing", "anything", "fallback"))
	assert.Nil(t, b.EffectiveValue("missing", "anything", nil))
}

func TestEnterEditModeIsIdempotent(t *testing.T) {
	b := New()
	require.NoError(t, b.EnterEditMode("1", Draft{"qty": 1}))
	require.NoError(t, b.SetField("1", "qty", 4))
	require.NoError(t, b.EnterEditMode("1", Draft{"qty": 1}))

	assert.Equal(t, 4, b.EffectiveValue("1", "qty", 0))
	assert.Equal(t, []RowID{"1"}, b.Editing())
}

func TestSeedIsCopied(t *testing.T) {
	b := New()
	seed := Draft{"qty": 1}
	require.NoError(t, b.EnterEditMode("1", seed))
	seed["qty"] = 99
	assert.Equal(t, 1, b.EffectiveValue("1", "qty", 0))
}

func TestSetFieldRequiresEditMode(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.SetField("1", "qty", 3), ErrNotEditing)
	assert.ErrorIs(t, b.SetField("", "qty", 3), ErrEmptyRowID)
	assert.ErrorIs(t, b.EnterEditMode("", nil), ErrEmptyRowID)
}

func TestCommitPrepareOnlyTouchedFieldsAndKeepsState(t *testing.T) {
	b := New()
	require.NoError(t, b.EnterEditMode("1", nil))
	require.NoError(t, b.EnterEditMode("2", nil))
	require.NoError(t, b.SetField("1", "change_amount", "12"))

	patches := b.CommitPrepare("1", "2", "3", "1")
	require.Len(t, patches, 2)
	assert.Equal(t, Patch{ID: "1", Fields: Draft{"change_amount": "12"}}, patches[0])
	assert.Equal(t, Patch{ID: "2", Fields: Draft{}}, patches[1])

	patches[0].Fields["change_amount"] = "mutated"
	assert.Equal(t, "12", b.EffectiveValue("1", "change_amount", nil))
	assert.Equal(t, StateEditing, b.State("1"))
	assert.Equal(t, StateEditing, b.State("2"))
}

func TestResetAll(t *testing.T) {
	b := New()
	require.NoError(t, b.EnterEditMode("1", Draft{"a": 1}))
	require.NoError(t, b.EnterEditMode("2", nil))
	b.ResetAll()
	assert.Empty(t, b.Editing())
	assert.Equal(t, "x", b.EffectiveValue("1", "a", "x"))
}

func TestLoadingLocksRow(t *testing.T) {
	b := New()
	require.NoError(t, b.EnterEditMode("2", nil))
	b.SetLoading(true, "1", "2")
	b.SetAllLoading(true)

	assert.ErrorIs(t, b.EnterEditMode("1", nil), ErrRowLocked)
	assert.ErrorIs(t, b.SetField("2", "a", 1), ErrRowLocked)
	assert.Equal(t, map[string]bool{"1": true, "2": true, LoadingAll: true}, b.Loading())

	b.SetLoading(false, "1", "2")
	b.SetAllLoading(false)
	assert.False(t, b.IsLoading("1"))
	assert.False(t, b.AllLoading())
	assert.Equal(t, map[string]bool{LoadingAll: false}, b.Loading())
	require.NoError(t, b.EnterEditMode("1", nil))
}

func TestAcquireLoading(t *testing.T) {
	b := New()
	b.SetLoading(true, "2")
	acquired, busy := b.AcquireLoading("1", "2", "3")
	assert.Equal(t, []RowID{"1", "3"}, acquired)
	assert.Equal(t, []RowID{"2"}, busy)
	assert.True(t, b.IsLoading("3"))
}

func TestReservedRowID(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.EnterEditMode(LoadingAll, nil), ErrReservedRowID)
	assert.ErrorIs(t, b.EnterEditMode("", nil), ErrEmptyRowID)
	assert.Equal(t, StateView, b.State(LoadingAll))

	b.SetLoading(true, LoadingAll)
	assert.False(t, b.IsLoading(LoadingAll))

	acquired, busy := b.AcquireLoading("1", LoadingAll)
	assert.Equal(t, []RowID{"1"}, acquired)
	assert.Equal(t, []RowID{LoadingAll}, busy)

	b.SetAllLoading(true)
	assert.Equal(t, map[string]bool{"1": true, LoadingAll: true}, b.Loading())
}

func TestOverlappingBatchesKeepAggregateFlag(t *testing.T) {
	b := New()
	b.SetAllLoading(true)
	b.SetAllLoading(true)
	b.SetAllLoading(false)
	assert.True(t, b.AllLoading())
	b.SetAllLoading(false)
	b.SetAllLoading(false)
	assert.False(t, b.AllLoading())
}

func TestDispatch(t *testing.T) {
	b := New()
	_, err := b.Dispatch(EnterEdit{Row: "9"})
	require.NoError(t, err)
	_, err = b.Dispatch(SetField{Row: "9", Field: "location", Value: "A-1"})
	require.NoError(t, err)

	patches, err := b.Dispatch(Commit{Rows: []RowID{"9"}})
	require.NoError(t, err)
	require.Len(t, patches, 1)
	assert.Equal(t, "A-1", patches[0].Fields["location"])

	_, err = b.Dispatch(Discard{Rows: []RowID{"9"}})
	require.NoError(t, err)
	assert.Equal(t, StateView, b.State("9"))
}

func TestConcurrentWrites(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := RowID(string(rune('a' + i%5)))
			_ = b.EnterEditMode(id, nil)
			_ = b.SetField(id, "n", i)
			_ = b.EffectiveValue(id, "n", nil)
		}(i)
	}
	wg.Wait()
	assert.Len(t, b.Editing(), 5)
}
