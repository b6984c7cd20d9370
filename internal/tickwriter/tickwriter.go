// Package tickwriter batches incoming ticks and flushes them to the
// store, so a burst of trades costs one transaction instead of hundreds.
package tickwriter

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"pairstream/internal/model"
)

// Config holds writer tuning knobs.
type Config struct {
	// BatchSize triggers an immediate flush of a symbol once that
	// symbol's pending batch reaches it. Defaults to 100.
	BatchSize int

	// FlushInterval flushes whatever is pending on a timer, so a quiet
	// market still reaches disk promptly. Defaults to 1s.
	FlushInterval time.Duration
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
}

// Writer accumulates ticks per symbol and writes them to a TickStore in
// batches. Within a symbol order is preserved: ticks are flushed in
// arrival order, and a failed batch is requeued at the front so no
// later tick overtakes it.
type Writer struct {
	cfg   Config
	store model.TickStore

	mu      sync.Mutex
	pending map[string][]model.Tick

	written   atomic.Uint64
	flushErrs atomic.Uint64

	// Optional hook, called after each successful flush with the batch size.
	OnFlush func(n int)

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Writer on top of the given store.
func New(store model.TickStore, cfg Config) *Writer {
	cfg.defaults()
	return &Writer{
		cfg:     cfg,
		store:   store,
		pending: make(map[string][]model.Tick),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the interval flush loop until Stop is called.
func (w *Writer) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Flush(ctx)
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Add queues a tick under its symbol. A symbol reaching the batch size
// triggers a synchronous flush of that symbol alone.
func (w *Writer) Add(ctx context.Context, t model.Tick) {
	w.mu.Lock()
	w.pending[t.Symbol] = append(w.pending[t.Symbol], t)
	full := len(w.pending[t.Symbol]) >= w.cfg.BatchSize
	w.mu.Unlock()
	if full {
		w.flushSymbol(ctx, t.Symbol)
	}
}

// Flush writes every symbol's pending ticks, one transaction per symbol.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	symbols := make([]string, 0, len(w.pending))
	for sym := range w.pending {
		symbols = append(symbols, sym)
	}
	w.mu.Unlock()

	for _, sym := range symbols {
		w.flushSymbol(ctx, sym)
	}
}

// flushSymbol writes one symbol's batch. On failure the batch is
// requeued at the front of that symbol's queue and retried on the next
// trigger.
func (w *Writer) flushSymbol(ctx context.Context, sym string) {
	w.mu.Lock()
	batch := w.pending[sym]
	if len(batch) == 0 {
		w.mu.Unlock()
		return
	}
	delete(w.pending, sym)
	w.mu.Unlock()

	if err := w.store.AppendTicks(ctx, batch); err != nil {
		w.flushErrs.Add(1)
		log.Printf("[tickwriter] flush of %d %s ticks failed: %v (will retry)", len(batch), sym, err)
		w.mu.Lock()
		w.pending[sym] = append(batch, w.pending[sym]...)
		w.mu.Unlock()
		return
	}

	w.written.Add(uint64(len(batch)))
	if w.OnFlush != nil {
		w.OnFlush(len(batch))
	}
}

// Stop halts the flush loop and drains remaining ticks synchronously.
func (w *Writer) Stop(ctx context.Context) {
	close(w.stopCh)
	<-w.doneCh
	w.Flush(ctx)
}

// Pending reports how many ticks are queued but not yet written,
// across all symbols.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, batch := range w.pending {
		n += len(batch)
	}
	return n
}

// Written reports the total number of ticks successfully persisted.
func (w *Writer) Written() uint64 { return w.written.Load() }

// FlushErrors reports the number of failed flush attempts.
func (w *Writer) FlushErrors() uint64 { return w.flushErrs.Load() }
