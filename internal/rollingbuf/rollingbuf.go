// Package rollingbuf keeps a bounded in-memory window of recent ticks
// per symbol. The pipeline reads analytics inputs from here instead of
// hitting the store on every cycle.
package rollingbuf

import (
	"sort"
	"sync"

	"pairstream/internal/model"
)

// DefaultCapacity is the per-symbol ring size. At one trade per
// millisecond this is still ten seconds of history; in practice it
// covers several minutes.
const DefaultCapacity = 10000

// ring is a fixed-size circular tick buffer. Once full, each Add
// overwrites the oldest entry.
type ring struct {
	buf  []model.Tick
	pos  int
	full bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]model.Tick, capacity)}
}

func (r *ring) add(t model.Tick) {
	r.buf[r.pos] = t
	r.pos = (r.pos + 1) % len(r.buf)
	if r.pos == 0 {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.pos
}

// snapshot returns up to n most recent ticks in insertion order.
func (r *ring) snapshot(n int) []model.Tick {
	size := r.len()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]model.Tick, 0, n)
	start := r.pos - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Buffer holds one ring per symbol behind a single lock. Writers are the
// feed goroutine; readers are the scheduler loops.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*ring
}

// New creates a Buffer with the given per-symbol capacity.
// Non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Add appends a tick to its symbol's ring, creating the ring on first use.
func (b *Buffer) Add(t model.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[t.Symbol]
	if !ok {
		r = newRing(b.capacity)
		b.rings[t.Symbol] = r
	}
	r.add(t)
}

// Recent returns up to n most recent ticks for symbol in insertion order.
// n <= 0 means all buffered ticks.
func (b *Buffer) Recent(symbol string, n int) []model.Tick {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rings[symbol]
	if !ok {
		return nil
	}
	return r.snapshot(n)
}

// PriceSeries returns up to n most recent (timestamp, price) points for
// symbol, deduplicated by timestamp keeping the last observation, sorted
// ascending. This is the cleaned series the analytics task consumes.
func (b *Buffer) PriceSeries(symbol string, n int) (ts []int64, prices []float64) {
	ticks := b.Recent(symbol, n)
	if len(ticks) == 0 {
		return nil, nil
	}
	last := make(map[int64]float64, len(ticks))
	for _, t := range ticks {
		last[t.Timestamp] = t.Price
	}
	ts = make([]int64, 0, len(last))
	for k := range last {
		ts = append(ts, k)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	prices = make([]float64, len(ts))
	for i, k := range ts {
		prices[i] = last[k]
	}
	return ts, prices
}

// Len reports how many ticks are buffered for symbol.
func (b *Buffer) Len(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rings[symbol]
	if !ok {
		return 0
	}
	return r.len()
}

// Symbols lists symbols that have at least one buffered tick, sorted.
func (b *Buffer) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.rings))
	for s, r := range b.rings {
		if r.len() > 0 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Clear drops all buffered ticks for symbol.
func (b *Buffer) Clear(symbol string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rings, symbol)
}
