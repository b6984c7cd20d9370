package analytics

import (
	"math"
	"testing"
)

func series(ts []int64, prices []float64) Series {
	return Series{Timestamps: ts, Prices: prices}
}

func seq(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i+1) * 1000
	}
	return out
}

func TestComputePairHedgeRatio(t *testing.T) {
	ts := seq(5)
	x := series(ts, []float64{1, 2, 3, 4, 5})
	y := series(ts, []float64{2.1, 3.9, 6.2, 8.1, 9.8})

	res := ComputePair("BTCUSDT", "ETHUSDT", x, y, 20)
	if res.Empty() {
		t.Fatal("result is empty")
	}
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if math.Abs(*res.HedgeRatio-1.95) > 0.1 {
		t.Errorf("HedgeRatio = %v, want ~1.95", *res.HedgeRatio)
	}
	if res.NumObs != 5 {
		t.Errorf("NumObs = %d, want 5", res.NumObs)
	}
}

func TestComputePairSpreadDefinition(t *testing.T) {
	// y = 2x exactly: beta = 2, spread identically zero.
	ts := seq(8)
	xp := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	yp := make([]float64, len(xp))
	for i, v := range xp {
		yp[i] = 2 * v
	}

	res := ComputePair("A", "B", series(ts, xp), series(ts, yp), 20)
	if res.Empty() {
		t.Fatal("result is empty")
	}
	if math.Abs(*res.HedgeRatio-2) > 1e-9 {
		t.Errorf("HedgeRatio = %v, want 2", *res.HedgeRatio)
	}
	if math.Abs(*res.SpreadLast) > 1e-9 || math.Abs(*res.SpreadMean) > 1e-9 {
		t.Errorf("spread not zero: last=%v mean=%v", *res.SpreadLast, *res.SpreadMean)
	}
	// Zero spread std means z-scores collapse to zero, not blow up.
	if *res.ZScoreLast != 0 {
		t.Errorf("ZScoreLast = %v, want 0", *res.ZScoreLast)
	}
}

func TestComputePairZScoreBaseline(t *testing.T) {
	// z_score_mean and z_score_std carry the standardization baseline:
	// the windowed spread mean and std, not moments of the z values.
	ts := seq(12)
	xp := make([]float64, 12)
	yp := make([]float64, 12)
	for i := range xp {
		xp[i] = float64(i + 1)
		yp[i] = 3*xp[i] + math.Sin(float64(i))
	}

	res := ComputePair("A", "B", series(ts, xp), series(ts, yp), 8)
	if res.Empty() {
		t.Fatal("result is empty")
	}
	if math.Abs(*res.ZScoreMean-*res.SpreadMean) > 1e-12 {
		t.Errorf("ZScoreMean = %v, want spread mean %v", *res.ZScoreMean, *res.SpreadMean)
	}
	if math.Abs(*res.ZScoreStd-*res.SpreadStd) > 1e-12 {
		t.Errorf("ZScoreStd = %v, want spread std %v", *res.ZScoreStd, *res.SpreadStd)
	}
	// The last z-score still standardizes the last spread value.
	want := (*res.SpreadLast - *res.SpreadMean) / *res.SpreadStd
	if math.Abs(*res.ZScoreLast-want) > 1e-9 {
		t.Errorf("ZScoreLast = %v, want %v", *res.ZScoreLast, want)
	}
}

func TestComputePairInsufficientData(t *testing.T) {
	ts := seq(4)
	res := ComputePair("A", "B",
		series(ts, []float64{1, 2, 3, 4}),
		series(ts, []float64{2, 4, 6, 8}), 20)

	if !res.Empty() {
		t.Error("expected empty result for 4 observations")
	}
	if res.Err != nil {
		t.Errorf("data shortage must not set Err, got %v", res.Err)
	}
	if res.NumObs != 4 {
		t.Errorf("NumObs = %d, want 4", res.NumObs)
	}
}

func TestComputePairInnerJoin(t *testing.T) {
	// x has 7 points, y has 6; only 5 timestamps overlap.
	x := series([]int64{1, 2, 3, 4, 5, 6, 7}, []float64{1, 2, 3, 4, 5, 6, 7})
	y := series([]int64{2, 3, 4, 5, 6, 9}, []float64{4, 6, 8, 10, 12, 99})

	res := ComputePair("A", "B", x, y, 20)
	if res.NumObs != 5 {
		t.Fatalf("NumObs = %d, want 5", res.NumObs)
	}
	if math.Abs(*res.HedgeRatio-2) > 1e-9 {
		t.Errorf("HedgeRatio = %v, want 2", *res.HedgeRatio)
	}
}

func TestMetricAccessor(t *testing.T) {
	ts := seq(12)
	xp := make([]float64, 12)
	yp := make([]float64, 12)
	for i := range xp {
		xp[i] = float64(i + 1)
		yp[i] = 3*xp[i] + math.Sin(float64(i))
	}

	res := ComputePair("A", "B", series(ts, xp), series(ts, yp), 10)
	if res.Empty() {
		t.Fatal("result is empty")
	}

	for _, name := range []string{
		"hedge_ratio", "spread_mean", "spread_std", "spread_last",
		"z_score_last", "z_score_mean", "z_score_std", "correlation",
		"adf_statistic", "adf_p_value", "is_stationary",
	} {
		if _, ok := res.Metric(name); !ok {
			t.Errorf("Metric(%q) absent", name)
		}
	}
	if _, ok := res.Metric("no_such_metric"); ok {
		t.Error("unknown metric name should not resolve")
	}

	hr, _ := res.Metric("hedge_ratio")
	if math.Abs(hr-*res.HedgeRatio) > 1e-12 {
		t.Errorf("Metric(hedge_ratio) = %v, field = %v", hr, *res.HedgeRatio)
	}
}

func TestComputeSummary(t *testing.T) {
	s := ComputeSummary("BTCUSDT", []float64{1, 2, 3, 4, 5, 6}, 4)
	if s.Count != 4 || s.Last != 6 || s.Min != 3 || s.Max != 6 {
		t.Errorf("summary = %+v", s)
	}
	if math.Abs(s.Mean-4.5) > 1e-12 {
		t.Errorf("Mean = %v, want 4.5", s.Mean)
	}
	// Last return: 6/5 - 1 = 0.2.
	if math.Abs(s.Return-0.2) > 1e-12 {
		t.Errorf("Return = %v, want 0.2", s.Return)
	}

	empty := ComputeSummary("X", nil, 4)
	if empty.Count != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestComputeRolling(t *testing.T) {
	// y = 2x exactly: every window recovers beta = 2 with zero spread.
	ts := seq(9)
	xp := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	yp := make([]float64, len(xp))
	for i, v := range xp {
		yp[i] = 2 * v
	}

	rows := ComputeRolling(series(ts, xp), series(ts, yp), 5)
	if len(rows) != 5 {
		t.Fatalf("len = %d, want 5", len(rows))
	}
	if rows[0].Timestamp != ts[4] || rows[len(rows)-1].Timestamp != ts[8] {
		t.Errorf("timestamps = %d..%d, want %d..%d",
			rows[0].Timestamp, rows[len(rows)-1].Timestamp, ts[4], ts[8])
	}
	for i, r := range rows {
		if math.Abs(r.HedgeRatio-2) > 1e-9 {
			t.Errorf("rows[%d].HedgeRatio = %v, want 2", i, r.HedgeRatio)
		}
		if r.ZScore != 0 {
			t.Errorf("rows[%d].ZScore = %v, want 0 for zero spread", i, r.ZScore)
		}
	}
}

func TestComputeRollingShortSeries(t *testing.T) {
	ts := seq(4)
	rows := ComputeRolling(
		series(ts, []float64{1, 2, 3, 4}),
		series(ts, []float64{2, 4, 6, 8}), 5)
	if rows != nil {
		t.Errorf("rows = %v, want nil for series shorter than window", rows)
	}
}
