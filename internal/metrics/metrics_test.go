package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersCleanly(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TicksTotal.WithLabelValues("BTCUSDT").Inc()
	m.BarsWritten.WithLabelValues("1s").Add(3)
	m.ZScoreLast.Set(1.26)

	fams, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(fams) == 0 {
		t.Fatal("no metric families registered")
	}
}

func TestHealthzDegradedWithoutFeed(t *testing.T) {
	h := NewHealthStatus()
	h.StoreOK = true

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
}

func TestHealthzHealthy(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.StoreOK = true
	h.SetLastTickTime(time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
