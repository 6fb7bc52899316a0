package stock

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/platform/cache"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

type memoryStockRepo struct {
	mu      sync.Mutex
	records map[int64]Record
	lists   int
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{records: map[int64]Record{
		1: {ID: 1, WarehouseID: 3, VariantID: 11, VariantName: "Green tea", Quantity: decimal.NewFromInt(4), MinQuantity: decimal.NewFromInt(10), Location: "A-01"},
		2: {ID: 2, WarehouseID: 3, VariantID: 12, VariantName: "Black tea", Quantity: decimal.NewFromInt(40), MinQuantity: decimal.NewFromInt(10), Location: "A-02"},
	}}
}

func (r *memoryStockRepo) List(ctx context.Context, warehouseID int64, filters shared.ListFilters) ([]Record, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []Record
	for id := int64(1); id <= int64(len(r.records)); id++ {
		if rec, ok := r.records[id]; ok && rec.WarehouseID == warehouseID {
			out = append(out, rec)
		}
	}
	return out, len(out), nil
}

func (r *memoryStockRepo) Get(ctx context.Context, id int64) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryStockRepo) Update(ctx context.Context, id int64, upd Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	if upd.Quantity != nil {
		rec.Quantity = *upd.Quantity
	}
	if upd.MinQuantity != nil {
		rec.MinQuantity = *upd.MinQuantity
	}
	if upd.Location != nil {
		rec.Location = *upd.Location
	}
	r.records[id] = rec
	return nil
}

func TestUpdateRow(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	err := svc.UpdateRow(ctx, editbuffer.Patch{ID: "1", Fields: editbuffer.Draft{
		FieldQuantity: json.Number("12.5"),
		FieldLocation: "  B-07 ",
	}})
	require.NoError(t, err)
	rec, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "12.5", rec.Quantity.String())
	assert.Equal(t, "B-07", rec.Location)

	err = svc.UpdateRow(ctx, editbuffer.Patch{ID: "9", Fields: editbuffer.Draft{FieldQuantity: 1}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateRowValidation(t *testing.T) {
	svc := NewService(newMemoryStockRepo(), nil, nil)
	ctx := context.Background()

	cases := map[string]editbuffer.Draft{
		FieldQuantity:    {FieldQuantity: -1},
		FieldMinQuantity: {FieldMinQuantity: "-0.5"},
		FieldLocation:    {FieldLocation: strings.Repeat("x", MaxLocationLength+1)},
		"variant_name":   {"variant_name": "x"},
	}
	for field, fields := range cases {
		err := svc.UpdateRow(ctx, editbuffer.Patch{ID: "1", Fields: fields})
		var vErr *shared.ValidationError
		require.ErrorAs(t, err, &vErr, field)
		assert.Equal(t, field, vErr.Field)
	}

	err := svc.UpdateRow(ctx, editbuffer.Patch{ID: "1", Fields: editbuffer.Draft{FieldQuantity: "-1e-400"}})
	assert.ErrorIs(t, err, shared.ErrInvalidValue)

	assert.NoError(t, svc.ValidateField(ctx, "1", FieldQuantity, 0, nil))
	assert.NoError(t, svc.ValidateField(ctx, "1", FieldLocation, strings.Repeat("x", MaxLocationLength), nil))
	assert.ErrorIs(t, svc.ValidateField(ctx, "1", FieldQuantity, "many", nil), shared.ErrInvalidValue)
	assert.ErrorIs(t, svc.ValidateField(ctx, "1", FieldLocation, 5, nil), shared.ErrInvalidValue)
}

func TestListCachedUntilRefresh(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryStockRepo()
	svc := NewService(repo, cache.NewVersioned(client, "stock", time.Minute), nil)
	ctx := context.Background()
	filters := shared.ListFilters{Page: 1, Limit: 20}

	page, err := svc.List(ctx, 3, filters)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.True(t, page.Records[0].BelowMinimum)
	assert.False(t, page.Records[1].BelowMinimum)

	_, err = svc.List(ctx, 3, filters)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	require.NoError(t, svc.Refresh(ctx))
	_, err = svc.List(ctx, 3, filters)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
}

func TestListEndpoint(t *testing.T) {
	svc := NewService(newMemoryStockRepo(), nil, nil)
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/warehouses/3/stock", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var page Page
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Records, 2)
	assert.Equal(t, "A-01", page.Records[0].Location)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/warehouses/0/stock", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
