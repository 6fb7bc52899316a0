package editsession

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pricedesk/internal/bulkcommit"
	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/notify"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

type fakeUpdater struct {
	mu      sync.Mutex
	fail    map[editbuffer.RowID]error
	written []editbuffer.Patch
}

func (f *fakeUpdater) UpdateRow(ctx context.Context, patch editbuffer.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[patch.ID]; err != nil {
		return err
	}
	f.written = append(f.written, patch)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func rejectNegative(_ context.Context, _ editbuffer.RowID, field string, value any, _ editbuffer.Draft) error {
	if n, ok := value.(json.Number); ok && strings.HasPrefix(n.String(), "-") {
		return &shared.ValidationError{Field: field, Reason: "must not be negative"}
	}
	if n, ok := value.(int); ok && n < 0 {
		return &shared.ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

type fixture struct {
	registry *Registry
	updater  *fakeUpdater
	notes    *notify.Recorder
	clock    *clock
	refresh  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		updater: &fakeUpdater{fail: map[editbuffer.RowID]error{}},
		notes:   &notify.Recorder{},
		clock:   &clock{now: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)},
	}
	f.registry = NewRegistry(Options{
		ChunkSize: 2,
		TTL:       10 * time.Minute,
		Notifier:  f.notes,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       f.clock.Now,
	})
	require.NoError(t, f.registry.Bind(Binding{
		Table:   "stock",
		Updater: f.updater,
		Refresher: bulkcommit.RefreshFunc(func(context.Context) error {
			f.refresh++
			return nil
		}),
		Validate: rejectNegative,
	}))
	return f
}

func TestBindRequiresUpdater(t *testing.T) {
	r := NewRegistry(Options{})
	assert.Error(t, r.Bind(Binding{Table: "x"}))
	assert.Error(t, r.Bind(Binding{Updater: &fakeUpdater{}}))
}

func TestOpenGetClose(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Open("missing")
	assert.ErrorIs(t, err, ErrUnknownTable)

	s, err := f.registry.Open("stock")
	require.NoError(t, err)
	assert.Len(t, s.ID(), 36)
	assert.Equal(t, []string{"stock"}, f.registry.Tables())

	got, err := f.registry.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, f.registry.Close(s.ID()))
	_, err = f.registry.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.registry.Close(s.ID()), ErrSessionNotFound)

	_, err = s.Dispatch(context.Background(), editbuffer.EnterEdit{Row: "1"})
	assert.ErrorIs(t, err, bulkcommit.ErrClosed)
	assert.ErrorIs(t, s.Reset(), bulkcommit.ErrClosed)
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	f := newFixture(t)
	idle, err := f.registry.Open("stock")
	require.NoError(t, err)
	active, err := f.registry.Open("stock")
	require.NoError(t, err)

	f.clock.Advance(8 * time.Minute)
	_, err = f.registry.Get(active.ID())
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	assert.Equal(t, 1, f.registry.Sweep(f.clock.Now()))
	assert.Equal(t, 1, f.registry.Len())
	_, err = f.registry.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.registry.Get(active.ID())
	assert.NoError(t, err)
}

func TestDispatchValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	s, err := f.registry.Open("stock")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Dispatch(ctx, editbuffer.SetField{Row: "1", Field: "quantity", Value: 3})
	assert.ErrorIs(t, err, editbuffer.ErrNotEditing)

	_, err = s.Dispatch(ctx, editbuffer.EnterEdit{Row: "1"})
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, editbuffer.SetField{Row: "1", Field: "quantity", Value: -3})
	assert.ErrorIs(t, err, shared.ErrInvalidValue)
	_, err = s.Dispatch(ctx, editbuffer.SetField{Row: "1", Field: "quantity", Value: 3})
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, []editbuffer.RowID{"1"}, snap.Editing)
	assert.Equal(t, editbuffer.Draft{"quantity": 3}, snap.Drafts["1"])
}

func TestDispatchCommitPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.updater.fail["2"] = errors.New("conflict")
	s, err := f.registry.Open("stock")
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []editbuffer.RowID{"1", "2", "3"} {
		_, err := s.Dispatch(ctx, editbuffer.EnterEdit{Row: id})
		require.NoError(t, err)
		_, err = s.Dispatch(ctx, editbuffer.SetField{Row: id, Field: "location", Value: "A-" + string(id)})
		require.NoError(t, err)
	}

	report, err := s.CommitAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, []editbuffer.RowID{"1", "3"}, report.Committed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, editbuffer.RowID("2"), report.Failed[0].Row)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 1, f.refresh)

	snap := s.Snapshot()
	assert.Equal(t, []editbuffer.RowID{"2"}, snap.Editing)
	assert.Equal(t, "A-2", snap.Drafts["2"]["location"])
	assert.False(t, snap.Loading[editbuffer.LoadingAll])

	notes := f.notes.All()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindError, notes[0].Kind)
	assert.Equal(t, []string{"2"}, notes[0].Failed)
}

func newTestServer(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.registry).MountRoutes(r)
	return r
}

func send(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func TestHTTPSessionFlow(t *testing.T) {
	f := newFixture(t)
	h := newTestServer(t, f)

	rr := send(t, h, http.MethodPost, "/edit-sessions", `{"table":"stock"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	base := "/edit-sessions/" + snap.ID

	rr = send(t, h, http.MethodPost, base+"/commands", `{"type":"enter_edit","row":"7","seed":{"location":"A-1"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = send(t, h, http.MethodPost, base+"/commands", `{"type":"set_field","row":"7","field":"quantity","value":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = send(t, h, http.MethodPost, base+"/commands", `{"type":"set_field","row":"8","field":"quantity","value":1}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = send(t, h, http.MethodPost, base+"/commands", `{"type":"set_field","row":"7","field":"quantity","value":12}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = send(t, h, http.MethodPost, base+"/commands", `{"type":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = send(t, h, http.MethodPost, base+"/commands", `{"type":"enter_edit","row":"all"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = send(t, h, http.MethodPost, base+"/commit", `{"rows":["7"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Session Snapshot          `json:"session"`
		Report  bulkcommit.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []editbuffer.RowID{"7"}, resp.Report.Committed)
	assert.Empty(t, resp.Session.Editing)

	require.Len(t, f.updater.written, 1)
	assert.Equal(t, "A-1", f.updater.written[0].Fields["location"])
	assert.Equal(t, json.Number("12"), f.updater.written[0].Fields["quantity"])

	rr = send(t, h, http.MethodPost, base+"/reset", `{}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = send(t, h, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = send(t, h, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = send(t, h, http.MethodPost, "/edit-sessions", `{"table":"ledger"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
