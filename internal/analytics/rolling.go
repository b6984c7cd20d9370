package analytics

import (
	"math"

	"pairstream/internal/stats"
)

// RollingRow is one trailing-window evaluation of the pair, indexed by
// the timestamp at the window's end.
type RollingRow struct {
	Timestamp   int64   `json:"timestamp"`
	HedgeRatio  float64 `json:"hedge_ratio"`
	SpreadLast  float64 `json:"spread_last"`
	ZScore      float64 `json:"z_score"`
	Correlation float64 `json:"correlation"`
}

// ComputeRolling walks a fixed window over the joined pair series and
// refits the hedge ratio at each step, producing one row per window
// position. The result is empty when the joined series is shorter than
// the window. Windows with a degenerate fit are skipped.
func ComputeRolling(x, y Series, window int) []RollingRow {
	if window < minPairObs {
		window = minPairObs
	}
	ts, xs, ys := innerJoin(x, y)
	if len(xs) < window {
		return nil
	}

	rows := make([]RollingRow, 0, len(xs)-window+1)
	for end := window; end <= len(xs); end++ {
		wx := xs[end-window : end]
		wy := ys[end-window : end]

		fit, err := stats.OLS(wx, wy)
		if err != nil {
			continue
		}
		beta := fit.Slope

		spread := make([]float64, window)
		for i := range wx {
			spread[i] = wy[i] - beta*wx[i]
		}
		mean := stats.Mean(spread)
		std := stats.Std(spread)
		last := spread[window-1]

		z := 0.0
		if std > 0 && !math.IsNaN(std) && !math.IsInf(std, 0) {
			z = (last - mean) / std
		}

		rows = append(rows, RollingRow{
			Timestamp:   ts[end-1],
			HedgeRatio:  beta,
			SpreadLast:  last,
			ZScore:      z,
			Correlation: stats.Correlation(wx, wy, window),
		})
	}
	return rows
}
