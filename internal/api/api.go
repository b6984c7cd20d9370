// Package api provides the HTTP query and alert-admin surface of the
// pipeline. All reads go through the persistence port or in-memory
// state; the API never mutates pipeline-owned rows.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"pairstream/internal/alertengine"
	"pairstream/internal/analytics"
	"pairstream/internal/feed"
	"pairstream/internal/model"
	"pairstream/internal/rollingbuf"
	"pairstream/internal/scheduler"
)

const defaultLimit = 100

// Server wires the HTTP handlers to the pipeline.
type Server struct {
	store  model.Store
	buf    *rollingbuf.Buffer
	sched  *scheduler.Scheduler
	engine *alertengine.Engine
	feed   *feed.Client

	pairX, pairY string

	srv *http.Server
}

// New creates the API server. feedClient may be nil; the status
// endpoint then reports zero feed stats.
func New(addr string, store model.Store, buf *rollingbuf.Buffer,
	sched *scheduler.Scheduler, engine *alertengine.Engine,
	feedClient *feed.Client, pairX, pairY string) *Server {

	s := &Server{
		store:  store,
		buf:    buf,
		sched:  sched,
		engine: engine,
		feed:   feedClient,
		pairX:  pairX,
		pairY:  pairY,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/{$}", s.handleStatus)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/ticks/{symbol}", s.handleTicks)
	mux.HandleFunc("GET /api/v1/bars/{symbol}/{timeframe}", s.handleBars)
	mux.HandleFunc("GET /api/v1/analytics/{symbol_x}/{symbol_y}/{timeframe}", s.handleSnapshots)
	mux.HandleFunc("GET /api/v1/analytics/latest", s.handleLatest)
	mux.HandleFunc("GET /api/v1/summary/{symbol}", s.handleSummary)
	mux.HandleFunc("GET /api/v1/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/v1/alerts", s.handleCreateAlert)
	mux.HandleFunc("DELETE /api/v1/alerts/{id}", s.handleDeleteAlert)
	mux.HandleFunc("POST /api/v1/alerts/{id}/deactivate", s.handleDeactivateAlert)
	mux.HandleFunc("GET /api/v1/alerts/firings", s.handleFirings)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the mux, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// handleStatus is the pipeline overview: configured pair, per-symbol
// buffer depth and feed counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	symbols := s.buf.Symbols()
	buffers := make(map[string]int, len(symbols))
	for _, sym := range symbols {
		buffers[sym] = s.buf.Len(sym)
	}

	var fs feed.Stats
	if s.feed != nil {
		fs = s.feed.Stats()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": "pairstream",
		"pair":    map[string]string{"symbol_x": s.pairX, "symbol_y": s.pairY},
		"symbols": orEmpty(symbols),
		"buffers": buffers,
		"feed": map[string]any{
			"is_running": fs.Running,
			"received":   fs.Received,
			"malformed":  fs.Malformed,
			"dropped":    fs.Dropped,
			"reconnects": fs.Reconnects,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	symbol := model.NormalizeSymbol(r.PathValue("symbol"))
	ticks, err := s.store.RecentTicks(r.Context(), symbol, limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ticks))
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := model.NormalizeSymbol(r.PathValue("symbol"))
	tf, err := model.ParseTimeframe(r.PathValue("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bars, err := s.store.RecentBars(r.Context(), symbol, tf, limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(bars))
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	symX := model.NormalizeSymbol(r.PathValue("symbol_x"))
	symY := model.NormalizeSymbol(r.PathValue("symbol_y"))
	tf, err := model.ParseTimeframe(r.PathValue("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snaps, err := s.store.RecentSnapshots(r.Context(), symX, symY, tf, limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(snaps))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	res := s.sched.LastResult()
	if res == nil {
		writeError(w, http.StatusNotFound, "no analytics computed yet")
		return
	}
	writeJSON(w, http.StatusOK, latestView(res))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := model.NormalizeSymbol(r.PathValue("symbol"))
	window := defaultLimit
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = n
	}
	_, prices := s.buf.PriceSeries(symbol, 0)
	writeJSON(w, http.StatusOK, analytics.ComputeSummary(symbol, prices, window))
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ActiveAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(alerts))
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metric    string  `json:"metric"`
		Condition string  `json:"condition"`
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Metric == "" {
		writeError(w, http.StatusBadRequest, "metric is required")
		return
	}
	if err := model.ValidateCondition(req.Condition); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := s.store.CreateAlert(r.Context(), req.Metric, req.Condition, req.Threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.engine != nil {
		if err := s.engine.Reload(r.Context()); err != nil {
			log.Printf("[api] alert reload: %v", err)
		}
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	if err := s.store.DeleteAlert(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.engine != nil {
		s.engine.Reload(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivateAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	if err := s.store.DeactivateAlert(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.engine != nil {
		s.engine.Reload(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFirings(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusOK, []alertengine.Firing{})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.History(limitParam(r)))
}

// latestView flattens a PairResult for the wire: absent metrics are null.
func latestView(res *analytics.PairResult) map[string]any {
	view := map[string]any{
		"symbol_x": res.SymbolX,
		"symbol_y": res.SymbolY,
		"num_obs":  res.NumObs,
	}
	for _, name := range []string{
		"hedge_ratio", "spread_mean", "spread_std", "spread_last",
		"z_score_last", "z_score_mean", "z_score_std", "correlation",
		"adf_statistic", "adf_p_value", "is_stationary",
	} {
		if v, ok := res.Metric(name); ok {
			if name == "is_stationary" {
				view[name] = v == 1
			} else {
				view[name] = v
			}
		} else {
			view[name] = nil
		}
	}
	return view
}

func limitParam(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return n
}

// orEmpty keeps JSON arrays as [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
