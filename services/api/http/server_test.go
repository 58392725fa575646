package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/02loveslollipop/prix-carburants/services/api/config"
	"github.com/02loveslollipop/prix-carburants/services/api/db"
)

type fakeStore struct {
	stations  []db.Station
	lastQuery db.StationQuery
	detail    map[int64]*db.StationDetail
	status    *db.ImportStatus
	err       error
}

func (f *fakeStore) ListStations(_ context.Context, q db.StationQuery) (*db.StationPage, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	end := min(q.Offset+q.Limit, len(f.stations))
	start := min(q.Offset, end)
	return &db.StationPage{Stations: f.stations[start:end], TotalCount: len(f.stations)}, nil
}

func (f *fakeStore) GetStation(_ context.Context, id int64) (*db.StationDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail[id], nil
}

func (f *fakeStore) ImportStatus(_ context.Context, _ time.Time) (*db.ImportStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.status == nil {
		return &db.ImportStatus{}, nil
	}
	return f.status, nil
}

func testConfig() config.Config {
	return config.Config{Port: 8080, DefaultLimit: 2, MaxLimit: 3}
}

func newTestStore() *fakeStore {
	city := "PARIS"
	return &fakeStore{
		stations: []db.Station{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}},
		detail: map[int64]*db.StationDetail{
			75001001: {
				Station:  db.Station{ID: 75001001, City: &city},
				Prices:   []db.Price{{Fuel: "Gazole", Price: 1.789}},
				Services: []string{"Lavage"},
			},
		},
	}
}

func do(t *testing.T, srv *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	srv := New(testConfig(), newTestStore())
	rec := do(t, srv, http.MethodGet, "/healthz", map[string]string{"Origin": "https://app.example.org"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestListStationsPaging(t *testing.T) {
	store := newTestStore()
	srv := New(testConfig(), store)

	rec := do(t, srv, http.MethodGet, "/api/v1/core/stations?cp=75&limit=10&offset=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-API-Version"); got != "v1" {
		t.Fatalf("X-API-Version = %q", got)
	}
	if store.lastQuery.Limit != 3 || store.lastQuery.Offset != 1 || store.lastQuery.PostalPrefix != "75" {
		t.Fatalf("query = %+v", store.lastQuery)
	}

	body := decode(t, rec)
	meta := body["meta"].(map[string]any)
	if meta["count"].(float64) != 3 || meta["total_count"].(float64) != 4 {
		t.Fatalf("meta = %v", meta)
	}
	if meta["has_more"].(bool) {
		t.Fatalf("has_more should be false at the end of the list")
	}
}

func TestListStationsDefaultLimit(t *testing.T) {
	store := newTestStore()
	srv := New(testConfig(), store)

	rec := do(t, srv, http.MethodGet, "/stations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastQuery.Limit != 2 {
		t.Fatalf("limit = %d, want default 2", store.lastQuery.Limit)
	}
	if body := decode(t, rec); body["total"].(float64) != 4 {
		t.Fatalf("total = %v", body["total"])
	}
}

func TestListStationsRejectsBadPaging(t *testing.T) {
	srv := New(testConfig(), newTestStore())
	for _, path := range []string{
		"/api/v1/core/stations?limit=0",
		"/api/v1/core/stations?limit=abc",
		"/api/v1/core/stations?offset=-1",
	} {
		if rec := do(t, srv, http.MethodGet, path, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestGetStation(t *testing.T) {
	srv := New(testConfig(), newTestStore())

	rec := do(t, srv, http.MethodGet, "/api/v1/core/stations/75001001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["city"] != "PARIS" {
		t.Fatalf("city = %v", data["city"])
	}
	prices := data["prices"].([]any)
	if len(prices) != 1 || prices[0].(map[string]any)["fuel"] != "Gazole" {
		t.Fatalf("prices = %v", prices)
	}

	if rec := do(t, srv, http.MethodGet, "/stations/75001001", nil); rec.Code != http.StatusOK {
		t.Fatalf("unversioned status = %d", rec.Code)
	}
}

func TestGetStationErrors(t *testing.T) {
	srv := New(testConfig(), newTestStore())

	if rec := do(t, srv, http.MethodGet, "/api/v1/core/stations/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/core/stations/42", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", rec.Code)
	}
}

func TestStoreErrorIs500(t *testing.T) {
	store := newTestStore()
	store.err = errors.New("db down")
	srv := New(testConfig(), store)

	for _, path := range []string{"/api/v1/core/stations", "/api/v1/core/stations/1", "/api/v1/realtime/now", "/now"} {
		if rec := do(t, srv, http.MethodGet, path, nil); rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
	}
}

func TestRealtimeNow(t *testing.T) {
	store := newTestStore()
	srv := New(testConfig(), store)

	if rec := do(t, srv, http.MethodGet, "/api/v1/realtime/now", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("empty store status = %d", rec.Code)
	}

	last := time.Now().UTC()
	store.status = &db.ImportStatus{LastImport: &last, RowsToday: 10, StationsToday: 4, Fresh: true}
	rec := do(t, srv, http.MethodGet, "/api/v1/realtime/now", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["fresh"] != true || data["rows_today"].(float64) != 10 {
		t.Fatalf("data = %v", data)
	}
}

func TestBearerAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BearerToken = "secret"
	srv := New(cfg, newTestStore())

	if rec := do(t, srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz should bypass auth, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/stations", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/stations", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/stations", map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", rec.Code)
	}
}

func TestPreflight(t *testing.T) {
	srv := New(testConfig(), newTestStore())
	rec := do(t, srv, http.MethodOptions, "/stations", map[string]string{
		"Origin":                        "https://app.example.org",
		"Access-Control-Request-Method": "GET",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d", rec.Code)
	}
}
