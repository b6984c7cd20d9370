package analytics

import (
	"math"

	"pairstream/internal/stats"
)

// SymbolSummary is a quick per-symbol view of recent price action,
// served by the query API.
type SymbolSummary struct {
	Symbol string  `json:"symbol"`
	Count  int     `json:"count"`
	Last   float64 `json:"last"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Return float64 `json:"return"` // last period-over-period return
}

// ComputeSummary summarizes the last window prices of a symbol.
// An empty series returns a zero summary with Count 0.
func ComputeSummary(symbol string, prices []float64, window int) SymbolSummary {
	s := SymbolSummary{Symbol: symbol}
	tail := stats.Tail(prices, window)
	if len(tail) == 0 {
		return s
	}

	s.Count = len(tail)
	s.Last = tail[len(tail)-1]
	s.Mean = stats.Mean(tail)
	s.Std = stats.Std(tail)
	s.Min, s.Max = tail[0], tail[0]
	for _, v := range tail[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if r := stats.Returns(tail); len(r) > 0 && !math.IsNaN(r[len(r)-1]) {
		s.Return = r[len(r)-1]
	}
	return s
}
