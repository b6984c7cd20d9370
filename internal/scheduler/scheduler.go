// Package scheduler drives the two periodic pipeline tasks: re-aggregating
// recent ticks into bars, and recomputing pair analytics plus alert checks.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"pairstream/internal/alertengine"
	"pairstream/internal/analytics"
	"pairstream/internal/model"
	"pairstream/internal/resampler"
	"pairstream/internal/rollingbuf"
)

const (
	// Resample loop: wait for some history, then rebuild recent bars.
	resampleStartDelay = 10 * time.Second
	resamplePeriod     = 5 * time.Second

	// The analytics loop starts sooner; its period comes from config.
	analyticsStartDelay = 5 * time.Second

	// Per-cycle data limits.
	tickFetchLimit   = 5000
	minResampleTicks = 10
	priceFetchLimit  = 1000
	priceKeep        = 200
	minWindow        = 5
)

// Config holds the scheduler's working set.
type Config struct {
	Symbols    []string
	Timeframes []model.Timeframe

	// PairX, PairY are the two symbols of the analytics pair.
	PairX, PairY string

	RollingWindow     int
	AnalyticsInterval time.Duration
}

// Scheduler owns the periodic loops. Both read from the store / rolling
// buffers and never block the ingest path.
type Scheduler struct {
	cfg    Config
	store  model.Store
	buf    *rollingbuf.Buffer
	engine *alertengine.Engine

	// now returns the current time in epoch milliseconds. Replaceable
	// in tests.
	now func() int64

	mu   sync.RWMutex
	last *analytics.PairResult

	// Optional hooks for instrumentation.
	OnBarsWritten func(tf model.Timeframe, n int)
	OnSnapshot    func(res *analytics.PairResult)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a Scheduler.
func New(cfg Config, store model.Store, buf *rollingbuf.Buffer, engine *alertengine.Engine) *Scheduler {
	if cfg.RollingWindow < minWindow {
		cfg.RollingWindow = minWindow
	}
	if cfg.AnalyticsInterval <= 0 {
		cfg.AnalyticsInterval = time.Second
	}
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		buf:    buf,
		engine: engine,
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock replaces the millisecond clock, for tests.
func (s *Scheduler) SetClock(now func() int64) { s.now = now }

// Start launches both loops. They run until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.loop(ctx, "resample", resampleStartDelay, resamplePeriod, s.RunResampleOnce)
	go s.loop(ctx, "analytics", analyticsStartDelay, s.cfg.AnalyticsInterval, s.RunAnalyticsOnce)
}

// Stop cancels the loops and waits for them to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, delay, period time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	log.Printf("[scheduler] %s loop started (period %s)", name, period)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunResampleOnce rebuilds recent bars for every symbol and timeframe
// from the rolling buffers, so bar freshness never depends on writer
// flush latency. Symbols with too little history are skipped; upserts
// make re-aggregation of overlapping windows harmless.
func (s *Scheduler) RunResampleOnce(ctx context.Context) {
	for _, sym := range s.cfg.Symbols {
		ticks := s.buf.Recent(sym, tickFetchLimit)
		if len(ticks) < minResampleTicks {
			continue
		}

		for _, tf := range s.cfg.Timeframes {
			bars := resampler.Resample(ticks, sym, tf)
			if len(bars) == 0 {
				continue
			}
			if err := s.store.UpsertBars(ctx, bars); err != nil {
				log.Printf("[scheduler] resample: upsert %s bars for %s: %v", tf, sym, err)
				continue
			}
			if s.OnBarsWritten != nil {
				s.OnBarsWritten(tf, len(bars))
			}
		}
	}
}

// RunAnalyticsOnce recomputes the pair statistics from the in-memory
// rolling buffers, persists a snapshot, and evaluates alerts.
func (s *Scheduler) RunAnalyticsOnce(ctx context.Context) {
	xTS, xP := s.buf.PriceSeries(s.cfg.PairX, priceFetchLimit)
	yTS, yP := s.buf.PriceSeries(s.cfg.PairY, priceFetchLimit)

	xTS, xP = keepTail(xTS, xP, priceKeep)
	yTS, yP = keepTail(yTS, yP, priceKeep)

	n := len(xP)
	if len(yP) < n {
		n = len(yP)
	}
	window := s.cfg.RollingWindow
	if half := n / 2; half < window {
		window = half
	}
	if window < minWindow {
		return
	}

	res := analytics.ComputePair(s.cfg.PairX, s.cfg.PairY,
		analytics.Series{Timestamps: xTS, Prices: xP},
		analytics.Series{Timestamps: yTS, Prices: yP},
		window)
	if res.Err != nil {
		log.Printf("[scheduler] analytics: %v", res.Err)
	}
	if res.Empty() {
		return
	}

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	now := s.now()
	if err := s.store.AppendSnapshot(ctx, res.Snapshot(model.TFTick, now)); err != nil {
		log.Printf("[scheduler] analytics: persist snapshot: %v", err)
	}
	if s.OnSnapshot != nil {
		s.OnSnapshot(&res)
	}

	if s.engine != nil {
		s.engine.Check(ctx, &res, now)
	}
}

// LastResult returns the most recent non-empty pair result, or nil.
func (s *Scheduler) LastResult() *analytics.PairResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func keepTail(ts []int64, prices []float64, n int) ([]int64, []float64) {
	if len(ts) <= n {
		return ts, prices
	}
	return ts[len(ts)-n:], prices[len(prices)-n:]
}
