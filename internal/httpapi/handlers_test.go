package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"departure-board/internal/board"
	"departure-board/internal/departures"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	boards  map[string]*board.Board
	err     error
	queries []board.Query
}

func (f *fakeService) Compute(q board.Query) (*board.Board, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return &board.Board{Station: string(q.Station), Mode: board.ModeName(q.Mode), Entries: []board.Entry{}}, nil
}

func (f *fakeService) Board(name string) (*board.Board, bool) {
	b, ok := f.boards[name]
	return b, ok
}

func (f *fakeService) Boards() []board.Summary {
	out := []board.Summary{}
	for name, b := range f.boards {
		at := b.ComputedAt
		out = append(out, board.Summary{Name: name, Station: b.Station, Mode: b.Mode, ComputedAt: &at})
	}
	return out
}

func newTestRouter(svc Service, metrics http.Handler) http.Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(svc, metrics, log)
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestRouter(&fakeService{}, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestBoards(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{boards: map[string]*board.Board{
		"central": {Name: "central", Station: "S", Mode: "departures", ComputedAt: at},
	}}
	h := newTestRouter(svc, nil)

	rec := get(t, h, "/boards")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []board.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "central", list[0].Name)

	rec = get(t, h, "/boards/central")
	require.Equal(t, http.StatusOK, rec.Code)
	var b board.Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "S", b.Station)
	assert.True(t, at.Equal(b.ComputedAt))

	rec = get(t, h, "/boards/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not found")
}

func TestStationQueries(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		status int
		want   board.Query
	}{
		{
			name:   "defaults",
			url:    "/stations/S1/departures",
			status: http.StatusOK,
			want:   board.Query{Station: "S1", Mode: departures.ModeDeparture, Types: departures.AllVehicleTypes(), Passengers: true, Freight: true},
		},
		{
			name:   "arrivals with filters",
			url:    "/stations/S1/arrivals?types=train,ship&via=true&freight=false",
			status: http.StatusOK,
			want: board.Query{
				Station:    "S1",
				Mode:       departures.ModeArrival,
				Types:      departures.VehicleTypeMask{true, false, false, true, false},
				Via:        true,
				Passengers: true,
			},
		},
		{name: "bad type", url: "/stations/S1/departures?types=blimp", status: http.StatusBadRequest},
		{name: "bad bool", url: "/stations/S1/departures?pax=perhaps", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := get(t, newTestRouter(svc, nil), tt.url)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.Empty(t, svc.queries)
				return
			}
			require.Len(t, svc.queries, 1)
			assert.Equal(t, tt.want, svc.queries[0])
		})
	}
}

func TestStationErrors(t *testing.T) {
	rec := get(t, newTestRouter(&fakeService{err: board.ErrNotLoaded}, nil), "/stations/S/departures")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(t, newTestRouter(&fakeService{err: errors.New("boom")}, nil), "/stations/S/departures")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMetricsRoute(t *testing.T) {
	rec := get(t, newTestRouter(&fakeService{}, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "m 1") })
	rec = get(t, newTestRouter(&fakeService{}, metrics), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m 1", rec.Body.String())
}
