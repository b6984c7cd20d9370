// Package analytics computes pair-trading statistics from two aligned
// price series: hedge ratio, spread, rolling z-score, correlation and
// the ADF stationarity test on the spread.
package analytics

import (
	"errors"

	"pairstream/internal/model"
	"pairstream/internal/stats"
)

// minPairObs is the minimum number of joined observations needed to fit
// the hedge ratio.
const minPairObs = 5

// Series is a timestamp-aligned price series for one symbol.
type Series struct {
	Timestamps []int64
	Prices     []float64
}

// PairResult is the outcome of one pair computation. Pointer fields are
// nil when the statistic could not be computed from the data at hand;
// Err carries a numerical failure (degenerate regression and the like),
// not a data-shortage condition.
type PairResult struct {
	SymbolX string
	SymbolY string
	NumObs  int

	HedgeRatio   *float64
	SpreadMean   *float64
	SpreadStd    *float64
	SpreadLast   *float64
	ZScoreLast   *float64
	ZScoreMean   *float64
	ZScoreStd    *float64
	Correlation  *float64
	ADFStatistic *float64
	ADFPValue    *float64
	IsStationary *bool

	Err error
}

// Empty reports whether the computation produced no statistics at all.
func (r *PairResult) Empty() bool {
	return r.HedgeRatio == nil
}

// Metric returns a statistic by its snake_case name, as used by alert
// definitions. is_stationary maps to 1 and 0. The second return is
// false for unknown names and absent values.
func (r *PairResult) Metric(name string) (float64, bool) {
	deref := func(p *float64) (float64, bool) {
		if p == nil {
			return 0, false
		}
		return *p, true
	}
	switch name {
	case "hedge_ratio":
		return deref(r.HedgeRatio)
	case "spread_mean":
		return deref(r.SpreadMean)
	case "spread_std":
		return deref(r.SpreadStd)
	case "spread_last":
		return deref(r.SpreadLast)
	case "z_score_last":
		return deref(r.ZScoreLast)
	case "z_score_mean":
		return deref(r.ZScoreMean)
	case "z_score_std":
		return deref(r.ZScoreStd)
	case "correlation":
		return deref(r.Correlation)
	case "adf_statistic":
		return deref(r.ADFStatistic)
	case "adf_p_value":
		return deref(r.ADFPValue)
	case "is_stationary":
		if r.IsStationary == nil {
			return 0, false
		}
		if *r.IsStationary {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Snapshot converts the result into its persisted form.
func (r *PairResult) Snapshot(tf model.Timeframe, computedAt int64) model.Snapshot {
	return model.Snapshot{
		SymbolX:     r.SymbolX,
		SymbolY:     r.SymbolY,
		Timeframe:   tf,
		HedgeRatio:  r.HedgeRatio,
		Spread:      r.SpreadLast,
		ZScore:      r.ZScoreLast,
		RollingCorr: r.Correlation,
		ADFStat:     r.ADFStatistic,
		PValue:      r.ADFPValue,
		ComputedAt:  computedAt,
	}
}

// ComputePair runs the full pair computation for symbol x and symbol y
// over a rolling window. The two series are inner-joined on timestamp;
// fewer than five shared observations yields an empty result (no error).
func ComputePair(symbolX, symbolY string, x, y Series, window int) PairResult {
	res := PairResult{SymbolX: symbolX, SymbolY: symbolY}

	_, xs, ys := innerJoin(x, y)
	res.NumObs = len(xs)
	if len(xs) < minPairObs {
		return res
	}

	fit, err := stats.OLS(xs, ys)
	if err != nil {
		if !errors.Is(err, stats.ErrInsufficientData) {
			res.Err = err
		}
		return res
	}
	beta := fit.Slope
	res.HedgeRatio = &beta

	// Spread over the whole joined sample: y - beta*x.
	spread := make([]float64, len(xs))
	for i := range xs {
		spread[i] = ys[i] - beta*xs[i]
	}

	tail := stats.Tail(spread, max(window, minPairObs))
	mean := stats.Mean(tail)
	std := stats.Std(tail)
	last := spread[len(spread)-1]
	res.SpreadMean = &mean
	res.SpreadStd = &std
	res.SpreadLast = &last

	z := stats.ZScores(spread, window)
	zLast := z[len(z)-1]
	res.ZScoreLast = &zLast
	// z_score_mean/std report the spread window the scores were
	// standardized against, not moments of the scores themselves.
	res.ZScoreMean = &mean
	res.ZScoreStd = &std

	corr := stats.Correlation(xs, ys, window)
	res.Correlation = &corr

	adf, err := stats.ADF(spread)
	switch {
	case err == nil:
		res.ADFStatistic = &adf.Statistic
		res.ADFPValue = &adf.PValue
		res.IsStationary = &adf.IsStationary
	case errors.Is(err, stats.ErrInsufficientData):
		// Not enough spread history yet; leave the ADF fields absent.
	default:
		res.Err = err
	}

	return res
}

// innerJoin aligns two series on timestamp, keeping only instants
// present in both, ascending.
func innerJoin(x, y Series) (ts []int64, xs, ys []float64) {
	yByTS := make(map[int64]float64, len(y.Timestamps))
	for i, t := range y.Timestamps {
		yByTS[t] = y.Prices[i]
	}
	for i, t := range x.Timestamps {
		yv, ok := yByTS[t]
		if !ok {
			continue
		}
		ts = append(ts, t)
		xs = append(xs, x.Prices[i])
		ys = append(ys, yv)
	}
	return ts, xs, ys
}
