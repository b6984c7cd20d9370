// Package metrics exposes Prometheus instrumentation and the health
// endpoint for the streaming pipeline.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairstream/internal/model"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	TicksTotal     *prometheus.CounterVec // labels: symbol
	MalformedTicks prometheus.Counter
	DroppedTicks   prometheus.Counter
	FeedReconnects prometheus.Counter

	TickFlushDur    prometheus.Histogram
	TickFlushErrors prometheus.Counter
	TicksWritten    prometheus.Counter

	BarsWritten    *prometheus.CounterVec // labels: timeframe
	BarUpsertDur   prometheus.Histogram
	SnapshotDur    prometheus.Histogram
	SnapshotsTotal prometheus.Counter
	AlertsFired    prometheus.Counter

	ZScoreLast prometheus.Gauge
	HedgeRatio prometheus.Gauge
}

// New registers and returns all pipeline metrics on the given registerer
// (nil means the default registry).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairstream_ticks_total",
			Help: "Total ticks received from the feed (by symbol)",
		}, []string{"symbol"}),
		MalformedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_malformed_frames_total",
			Help: "Feed frames skipped because they could not be parsed",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_dropped_ticks_total",
			Help: "Ticks dropped because the ingest channel was full",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_feed_reconnects_total",
			Help: "Feed reconnection attempts",
		}),
		TickFlushDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairstream_tick_flush_duration_seconds",
			Help:    "Tick batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		TickFlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_tick_flush_errors_total",
			Help: "Failed tick batch flushes (batch is requeued)",
		}),
		TicksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_ticks_written_total",
			Help: "Ticks durably persisted",
		}),
		BarsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairstream_bars_written_total",
			Help: "Bars upserted (by timeframe)",
		}, []string{"timeframe"}),
		BarUpsertDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairstream_bar_upsert_duration_seconds",
			Help:    "Bar batch upsert latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairstream_snapshot_write_duration_seconds",
			Help:    "Snapshot insert latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_snapshots_total",
			Help: "Analytics snapshots persisted",
		}),
		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairstream_alerts_fired_total",
			Help: "Alert firings delivered to sinks",
		}),
		ZScoreLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairstream_z_score_last",
			Help: "Latest spread z-score of the configured pair",
		}),
		HedgeRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairstream_hedge_ratio",
			Help: "Latest OLS hedge ratio of the configured pair",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.MalformedTicks,
		m.DroppedTicks,
		m.FeedReconnects,
		m.TickFlushDur,
		m.TickFlushErrors,
		m.TicksWritten,
		m.BarsWritten,
		m.BarUpsertDur,
		m.SnapshotDur,
		m.SnapshotsTotal,
		m.AlertsFired,
		m.ZScoreLast,
		m.HedgeRatio,
	)
	return m
}

// HealthStatus represents the pipeline health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected bool
	LastTickTime  time.Time
	StoreOK       bool

	StoreLatencyMs float64
	LastCheckAt    time.Time
	StartedAt      time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// CheckStore pings the store and records latency + connectivity.
func (h *HealthStatus) CheckStore(ctx context.Context, store model.Store) {
	start := time.Now()
	err := store.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic store probes.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, store model.Store, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckStore(probeCtx, store)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected || !h.StoreOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.FeedConnected && !h.StoreOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		FeedConnected  bool    `json:"feed_connected"`
		LastTickTime   string  `json:"last_tick_time"`
		TickAge        string  `json:"tick_age"`
		StoreOK        bool    `json:"store_ok"`
		StoreLatencyMs float64 `json:"store_latency_ms"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:  h.FeedConnected,
		LastTickTime:   h.LastTickTime.Format(time.RFC3339),
		TickAge:        tickAge,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
