// Package alertengine evaluates threshold alerts against each freshly
// computed analytics snapshot and fans firings out to delivery sinks.
package alertengine

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairstream/internal/analytics"
	"pairstream/internal/model"
)

// eqTolerance is the absolute tolerance for == and != comparisons on
// floating-point metrics.
const eqTolerance = 1e-6

// historyCap bounds the in-memory firing history.
const historyCap = 100

// Firing is one triggered alert occurrence. Timestamp is FiredAt
// rendered as ISO-8601 UTC for the wire.
type Firing struct {
	ID        string  `json:"id"`
	AlertID   int64   `json:"alert_id"`
	Metric    string  `json:"metric"`
	Condition string  `json:"condition"`
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
	FiredAt   int64   `json:"fired_at"` // ms
	Timestamp string  `json:"timestamp"`
}

// Sink delivers a firing to some channel (log, webhook, Redis, ...).
type Sink interface {
	Deliver(ctx context.Context, f Firing) error
}

// Engine holds the active alert set and the firing history. The alert
// set is refreshed from the store whenever alerts change; evaluation
// itself never touches the database.
type Engine struct {
	store model.AlertStore
	sinks []Sink

	mu      sync.RWMutex
	active  []model.Alert
	history []Firing
}

// New creates an Engine delivering to the given sinks.
func New(store model.AlertStore, sinks ...Sink) *Engine {
	return &Engine{store: store, sinks: sinks}
}

// Reload replaces the active alert set from the store.
func (e *Engine) Reload(ctx context.Context) error {
	alerts, err := e.store.ActiveAlerts(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.active = alerts
	e.mu.Unlock()
	log.Printf("[alerts] loaded %d active alerts", len(alerts))
	return nil
}

// ActiveCount reports how many alerts are currently evaluated.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

// Check evaluates every active alert against the snapshot metrics and
// delivers firings. Each alert fires at most once per call; an alert
// whose metric is absent from the result is skipped. Returns the
// firings produced by this check.
func (e *Engine) Check(ctx context.Context, res *analytics.PairResult, now int64) []Firing {
	e.mu.RLock()
	active := e.active
	e.mu.RUnlock()

	var fired []Firing
	for _, a := range active {
		value, ok := res.Metric(a.Metric)
		if !ok {
			continue
		}
		if !Evaluate(a.Condition, value, a.Threshold) {
			continue
		}
		f := Firing{
			ID:        uuid.NewString(),
			AlertID:   a.ID,
			Metric:    a.Metric,
			Condition: a.Condition,
			Threshold: a.Threshold,
			Value:     value,
			FiredAt:   now,
			Timestamp: time.UnixMilli(now).UTC().Format(time.RFC3339Nano),
		}
		fired = append(fired, f)
		log.Printf("[alerts] fired id=%s alert=%d %s %s %g (value=%g)",
			f.ID, a.ID, a.Metric, a.Condition, a.Threshold, value)
		e.deliver(ctx, f)
	}

	if len(fired) > 0 {
		e.mu.Lock()
		e.history = append(e.history, fired...)
		if len(e.history) > historyCap {
			e.history = e.history[len(e.history)-historyCap:]
		}
		e.mu.Unlock()
	}
	return fired
}

// deliver invokes sinks in order. A failing sink is logged and skipped;
// it never blocks the others.
func (e *Engine) deliver(ctx context.Context, f Firing) {
	for _, s := range e.sinks {
		if err := s.Deliver(ctx, f); err != nil {
			log.Printf("[alerts] sink %T failed: %v", s, err)
		}
	}
}

// History returns up to n most recent firings, newest last.
func (e *Engine) History(n int) []Firing {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h := e.history
	if n > 0 && n < len(h) {
		h = h[len(h)-n:]
	}
	out := make([]Firing, len(h))
	copy(out, h)
	return out
}

// Evaluate applies a comparison operator to value and threshold.
// Equality operators use an absolute tolerance of 1e-6. Unknown
// operators never match.
func Evaluate(cond string, value, threshold float64) bool {
	switch cond {
	case model.CondGT:
		return value > threshold
	case model.CondLT:
		return value < threshold
	case model.CondGTE:
		return value >= threshold
	case model.CondLTE:
		return value <= threshold
	case model.CondEQ:
		return math.Abs(value-threshold) <= eqTolerance
	case model.CondNEQ:
		return math.Abs(value-threshold) > eqTolerance
	}
	return false
}
