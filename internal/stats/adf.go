package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adfMinObs is the minimum number of cleaned observations the test runs on.
const adfMinObs = 10

// ADFResult is the outcome of an augmented Dickey-Fuller unit-root test
// with a constant term.
type ADFResult struct {
	Statistic      float64
	PValue         float64
	UsedLag        int
	NObs           int
	CriticalValues map[string]float64

	// IsStationary is PValue < 0.05.
	IsStationary bool
}

// ADF runs the augmented Dickey-Fuller test on series. Non-finite
// values are dropped first; fewer than ten remaining observations is
// ErrInsufficientData. The lag order is chosen by AIC over a common
// sample, up to floor((n-1)^(1/3)).
func ADF(series []float64) (ADFResult, error) {
	y := make([]float64, 0, len(series))
	for _, v := range series {
		if isFinite(v) {
			y = append(y, v)
		}
	}
	n := len(y)
	if n < adfMinObs {
		return ADFResult{}, ErrInsufficientData
	}

	// First differences: d[t] = y[t+1] - y[t].
	d := make([]float64, n-1)
	for i := range d {
		d[i] = y[i+1] - y[i]
	}

	maxlag := int(math.Cbrt(float64(n - 1)))
	// Leave enough rows for the largest regression: rows = len(d)-maxlag,
	// columns = maxlag+2.
	for maxlag > 0 && len(d)-maxlag <= maxlag+2 {
		maxlag--
	}

	// Pick the lag by AIC over the sample all candidates share.
	bestLag, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxlag; lag++ {
		fit, err := adfFit(y, d, lag, maxlag)
		if err != nil {
			continue
		}
		if aic := fit.aic(); aic < bestAIC {
			bestAIC = aic
			bestLag = lag
		}
	}

	// Refit at the chosen lag using every usable observation.
	fit, err := adfFit(y, d, bestLag, bestLag)
	if err != nil {
		return ADFResult{}, err
	}

	stat := fit.tStat(0)
	if !isFinite(stat) {
		return ADFResult{}, ErrDegenerate
	}
	p := mackinnonP(stat)

	return ADFResult{
		Statistic:      stat,
		PValue:         p,
		UsedLag:        bestLag,
		NObs:           fit.nobs,
		CriticalValues: mackinnonCrit(fit.nobs),
		IsStationary:   p < 0.05,
	}, nil
}

// adfFit regresses d[t] on [y[t], 1, d[t-1..t-lag]] for t = start..end,
// where start is chosen so every candidate lag up to maxlag sees the
// same rows. Column 0 carries the unit-root coefficient.
func adfFit(y, d []float64, lag, maxlag int) (*lmFit, error) {
	start := maxlag
	rows := len(d) - start
	cols := lag + 2
	if rows <= cols {
		return nil, ErrInsufficientData
	}

	X := mat.NewDense(rows, cols, nil)
	target := make([]float64, rows)
	for i := 0; i < rows; i++ {
		t := start + i
		target[i] = d[t]
		X.Set(i, 0, y[t])
		X.Set(i, 1, 1)
		for j := 1; j <= lag; j++ {
			X.Set(i, j+1, d[t-j])
		}
	}
	return fitLM(X, target)
}
