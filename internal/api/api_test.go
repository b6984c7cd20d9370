package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pairstream/internal/alertengine"
	"pairstream/internal/feed"
	"pairstream/internal/model"
	"pairstream/internal/rollingbuf"
	"pairstream/internal/scheduler"
)

type memStore struct {
	mu        sync.Mutex
	ticks     []model.Tick
	bars      []model.Bar
	snapshots []model.Snapshot
	alerts    []model.Alert
	nextID    int64
}

func (m *memStore) AppendTicks(ctx context.Context, ticks []model.Tick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks = append(m.ticks, ticks...)
	return nil
}

func (m *memStore) RecentTicks(ctx context.Context, symbol string, n int) ([]model.Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Tick
	for _, t := range m.ticks {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (m *memStore) UpsertBars(ctx context.Context, bars []model.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars = append(m.bars, bars...)
	return nil
}

func (m *memStore) RecentBars(ctx context.Context, symbol string, tf model.Timeframe, n int) ([]model.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Bar
	for _, b := range m.bars {
		if b.Symbol == symbol && b.Timeframe == tf {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) AppendSnapshot(ctx context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func (m *memStore) RecentSnapshots(ctx context.Context, x, y string, tf model.Timeframe, n int) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Snapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out, nil
}

func (m *memStore) CreateAlert(ctx context.Context, metric, condition string, threshold float64) (model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a := model.Alert{ID: m.nextID, Metric: metric, Condition: condition, Threshold: threshold, Active: true}
	m.alerts = append(m.alerts, a)
	return a, nil
}

func (m *memStore) ActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Alert
	for _, a := range m.alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) DeactivateAlert(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Active = false
		}
	}
	return nil
}

func (m *memStore) DeleteAlert(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.alerts[:0]
	for _, a := range m.alerts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	m.alerts = out
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }

func testServer(t *testing.T) (*Server, *memStore, *rollingbuf.Buffer) {
	t.Helper()
	store := &memStore{}
	buf := rollingbuf.New(1000)
	engine := alertengine.New(store)
	sched := scheduler.New(scheduler.Config{
		Symbols:           []string{"BTCUSDT", "ETHUSDT"},
		Timeframes:        []model.Timeframe{model.TF1s},
		PairX:             "BTCUSDT",
		PairY:             "ETHUSDT",
		RollingWindow:     10,
		AnalyticsInterval: time.Second,
	}, store, buf, engine)

	client := feed.New(feed.Config{
		Base:    "ws://localhost:0/stream",
		Symbols: []string{"BTCUSDT", "ETHUSDT"},
	})

	return New(":0", store, buf, sched, engine, client, "BTCUSDT", "ETHUSDT"), store, buf
}

func doReq(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doReq(t, s, "GET", "/api/v1/health", "")
	if rec.Code != 200 {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	s, _, buf := testServer(t)
	buf.Add(model.Tick{Timestamp: 1000, Symbol: "BTCUSDT", Price: 1, Quantity: 1})

	rec := doReq(t, s, "GET", "/api/v1/", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Service string         `json:"service"`
		Buffers map[string]int `json:"buffers"`
		Feed    struct {
			IsRunning bool `json:"is_running"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Service != "pairstream" {
		t.Errorf("service = %q", body.Service)
	}
	if body.Buffers["BTCUSDT"] != 1 {
		t.Errorf("buffers = %v, want BTCUSDT:1", body.Buffers)
	}
	if body.Feed.IsRunning {
		t.Error("feed should not be running without a connection")
	}
}

func TestTicksReturnsStored(t *testing.T) {
	s, store, _ := testServer(t)
	store.AppendTicks(context.Background(), []model.Tick{
		{Timestamp: 1000, Symbol: "BTCUSDT", Price: 1, Quantity: 1},
		{Timestamp: 2000, Symbol: "BTCUSDT", Price: 2, Quantity: 1},
	})

	rec := doReq(t, s, "GET", "/api/v1/ticks/btcusdt?limit=10", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var ticks []model.Tick
	if err := json.Unmarshal(rec.Body.Bytes(), &ticks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ticks) != 2 {
		t.Errorf("got %d ticks", len(ticks))
	}
}

func TestBarsRejectsBadTimeframe(t *testing.T) {
	s, _, _ := testServer(t)
	if rec := doReq(t, s, "GET", "/api/v1/bars/BTCUSDT/4h", ""); rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBarsReturnsStored(t *testing.T) {
	s, store, _ := testServer(t)
	store.UpsertBars(context.Background(), []model.Bar{
		{Symbol: "ETHUSDT", Timeframe: model.TF1s, StartTime: 1000, Open: 1, High: 2, Low: 1, Close: 2, Volume: 3},
	})

	rec := doReq(t, s, "GET", "/api/v1/bars/ethusdt/1s", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var bars []model.Bar
	if err := json.Unmarshal(rec.Body.Bytes(), &bars); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(bars) != 1 || bars[0].Symbol != "ETHUSDT" {
		t.Errorf("bars = %+v", bars)
	}
}

func TestLatestBeforeAnyComputation(t *testing.T) {
	s, _, _ := testServer(t)
	if rec := doReq(t, s, "GET", "/api/v1/analytics/latest", ""); rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSnapshotsEmptyArray(t *testing.T) {
	s, _, _ := testServer(t)
	rec := doReq(t, s, "GET", "/api/v1/analytics/BTCUSDT/ETHUSDT/tick", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestAlertCRUD(t *testing.T) {
	s, _, _ := testServer(t)

	rec := doReq(t, s, "POST", "/api/v1/alerts",
		`{"metric":"z_score_last","condition":">","threshold":2}`)
	if rec.Code != 201 {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created model.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doReq(t, s, "GET", "/api/v1/alerts", "")
	var alerts []model.Alert
	json.Unmarshal(rec.Body.Bytes(), &alerts)
	if len(alerts) != 1 {
		t.Fatalf("active alerts = %d, want 1", len(alerts))
	}

	rec = doReq(t, s, "POST", "/api/v1/alerts/1/deactivate", "")
	if rec.Code != 204 {
		t.Fatalf("deactivate status = %d", rec.Code)
	}
	rec = doReq(t, s, "GET", "/api/v1/alerts", "")
	json.Unmarshal(rec.Body.Bytes(), &alerts)
	if len(alerts) != 0 {
		t.Errorf("active after deactivate = %d", len(alerts))
	}

	rec = doReq(t, s, "DELETE", "/api/v1/alerts/1", "")
	if rec.Code != 204 {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	s, _, _ := testServer(t)

	if rec := doReq(t, s, "POST", "/api/v1/alerts", `{"metric":"x","condition":"~","threshold":1}`); rec.Code != 400 {
		t.Errorf("bad condition: status = %d, want 400", rec.Code)
	}
	if rec := doReq(t, s, "POST", "/api/v1/alerts", `{"condition":">","threshold":1}`); rec.Code != 400 {
		t.Errorf("missing metric: status = %d, want 400", rec.Code)
	}
	if rec := doReq(t, s, "POST", "/api/v1/alerts", `not json`); rec.Code != 400 {
		t.Errorf("bad body: status = %d, want 400", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	s, _, buf := testServer(t)
	for i := 0; i < 10; i++ {
		buf.Add(model.Tick{Timestamp: int64(i) * 1000, Symbol: "BTCUSDT", Price: float64(i), Quantity: 1})
	}

	rec := doReq(t, s, "GET", "/api/v1/summary/BTCUSDT?window=5", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var sum struct {
		Count int     `json:"count"`
		Last  float64 `json:"last"`
	}
	json.Unmarshal(rec.Body.Bytes(), &sum)
	if sum.Count != 5 || sum.Last != 9 {
		t.Errorf("summary = %+v", sum)
	}
}
