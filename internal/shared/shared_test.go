package shared

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID(raw)
		assert.ErrorIs(t, err, ErrInvalidID, raw)
	}
}

func TestValidationErrorUnwraps(t *testing.T) {
	var err error = &ValidationError{Field: "quantity", Reason: "must not be negative"}
	assert.EqualError(t, err, "invalid quantity: must not be negative")
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestListFiltersFromQuery(t *testing.T) {
	f := ListFiltersFromQuery(url.Values{
		"page":     {"3"},
		"limit":    {"9999"},
		"search":   {"red shirt"},
		"sort":     {"sku"},
		"dir":      {"desc"},
		"category": {"7"},
	})
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, MaxLimit, f.Limit)
	require.NotNil(t, f.CategoryID)
	assert.Equal(t, int64(7), *f.CategoryID)
	assert.Equal(t, 2*MaxLimit, f.Offset())
	assert.Equal(t, "3:500:7:sku:desc:red+shirt", f.CacheKey())

	d := ListFiltersFromQuery(url.Values{"category": {"x"}})
	assert.Equal(t, DefaultPage, d.Page)
	assert.Equal(t, DefaultLimit, d.Limit)
	assert.Nil(t, d.CategoryID)
	assert.Zero(t, d.Offset())
	assert.Equal(t, "1:50:-:::", d.CacheKey())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	p = NewPagination(0, 0, 0)
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.PerPage)
	assert.Zero(t, p.TotalPages)
}

func TestIdempotencyNilStore(t *testing.T) {
	var s *IdempotencyStore
	assert.Error(t, s.CheckAndInsert(context.Background(), "k", "m"))
	assert.NoError(t, s.Delete(context.Background(), "k"))
	assert.NoError(t, s.Cleanup(context.Background(), 0))
}
