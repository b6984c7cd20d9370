// Package resampler turns raw ticks into OHLCV bars at fixed timeframes.
package resampler

import (
	"sort"

	"pairstream/internal/model"
)

// Resample aggregates ticks into bars for the given timeframe. Ticks are
// assumed to be in ascending time order (Open is the first tick of a
// bucket, Close the last). Each tick lands in the bucket
// floor(ts / tfMillis); buckets with no ticks produce no bar. Output is
// sorted by StartTime ascending.
//
// The function is pure: resampling the same ticks twice yields identical
// bars, which together with the store's upsert keeps re-aggregation
// idempotent.
func Resample(ticks []model.Tick, symbol string, tf model.Timeframe) []model.Bar {
	tfMillis := tf.Millis()
	if tfMillis <= 0 || len(ticks) == 0 {
		return nil
	}

	type bucket struct {
		bar model.Bar
		set bool
	}
	buckets := make(map[int64]*bucket)

	for _, t := range ticks {
		if t.Symbol != symbol {
			continue
		}
		start := (t.Timestamp / tfMillis) * tfMillis
		b, ok := buckets[start]
		if !ok {
			b = &bucket{}
			buckets[start] = b
		}
		if !b.set {
			b.bar = model.Bar{
				Symbol:    symbol,
				Timeframe: tf,
				StartTime: start,
				Open:      t.Price,
				High:      t.Price,
				Low:       t.Price,
				Close:     t.Price,
				Volume:    t.Quantity,
			}
			b.set = true
			continue
		}
		if t.Price > b.bar.High {
			b.bar.High = t.Price
		}
		if t.Price < b.bar.Low {
			b.bar.Low = t.Price
		}
		b.bar.Close = t.Price
		b.bar.Volume += t.Quantity
	}

	bars := make([]model.Bar, 0, len(buckets))
	for _, b := range buckets {
		bars = append(bars, b.bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].StartTime < bars[j].StartTime })
	return bars
}

// ResampleAll aggregates one symbol's ticks across several timeframes.
func ResampleAll(ticks []model.Tick, symbol string, tfs []model.Timeframe) []model.Bar {
	var out []model.Bar
	for _, tf := range tfs {
		out = append(out, Resample(ticks, symbol, tf)...)
	}
	return out
}
