// Package stats implements the numerical kernel of the analytics task:
// ordinary least squares, rolling moments, and the augmented
// Dickey-Fuller stationarity test.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInsufficientData means a computation was asked for on fewer
	// observations than its minimum.
	ErrInsufficientData = errors.New("stats: insufficient data")

	// ErrDegenerate means the inputs have no variation (or are otherwise
	// numerically unusable) for the requested fit.
	ErrDegenerate = errors.New("stats: degenerate input")
)

// OLSResult holds a simple linear regression fit y = Intercept + Slope*x.
// StdErr, TStat and PValue describe the slope coefficient; PValue is the
// two-sided t test of slope = 0 with n-2 degrees of freedom.
type OLSResult struct {
	Slope     float64
	Intercept float64
	R2        float64
	StdErr    float64
	TStat     float64
	PValue    float64
	N         int
}

// OLS fits y against x by least squares. Requires at least two points
// and non-zero variance in x.
func OLS(x, y []float64) (OLSResult, error) {
	if len(x) != len(y) {
		return OLSResult{}, ErrDegenerate
	}
	n := len(x)
	if n < 2 {
		return OLSResult{}, ErrInsufficientData
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return OLSResult{}, ErrDegenerate
		}
	}
	if stat.Variance(x, nil) == 0 {
		return OLSResult{}, ErrDegenerate
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if !isFinite(slope) || !isFinite(intercept) {
		return OLSResult{}, ErrDegenerate
	}
	res := OLSResult{
		Slope:     slope,
		Intercept: intercept,
		R2:        stat.RSquared(x, y, nil, intercept, slope),
		N:         n,
	}

	// Slope inference needs at least one residual degree of freedom.
	if n > 2 {
		xMean := stat.Mean(x, nil)
		var ssr, sxx float64
		for i := range x {
			r := y[i] - (intercept + slope*x[i])
			ssr += r * r
			d := x[i] - xMean
			sxx += d * d
		}
		se := math.Sqrt(ssr / float64(n-2) / sxx)
		res.StdErr = se
		if se > 0 {
			res.TStat = slope / se
			tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
			res.PValue = 2 * tdist.Survival(math.Abs(res.TStat))
		} else {
			// Perfect fit: the slope is exact.
			res.TStat = math.Inf(sign(slope))
			res.PValue = 0
		}
	}
	return res, nil
}

func sign(f float64) int {
	if f < 0 {
		return -1
	}
	return 1
}

// lmFit is a multiple regression fit used by the ADF test.
type lmFit struct {
	coef   []float64
	stderr []float64
	ssr    float64
	nobs   int
	k      int
}

// tStat returns coef[i] / stderr[i].
func (f *lmFit) tStat(i int) float64 {
	if f.stderr[i] == 0 {
		return math.Inf(1)
	}
	return f.coef[i] / f.stderr[i]
}

// aic is the Akaike information criterion under Gaussian errors,
// matching the ordering used by standard lag-selection routines.
func (f *lmFit) aic() float64 {
	n := float64(f.nobs)
	ll := -n / 2 * (math.Log(2*math.Pi) + math.Log(f.ssr/n) + 1)
	return -2*ll + 2*float64(f.k)
}

// fitLM solves y = X*b by QR and derives coefficient standard errors
// from s^2 * (X'X)^-1.
func fitLM(X *mat.Dense, y []float64) (*lmFit, error) {
	n, k := X.Dims()
	if n <= k {
		return nil, ErrInsufficientData
	}

	yv := mat.NewVecDense(n, y)
	var qr mat.QR
	qr.Factorize(X)

	var bv mat.VecDense
	if err := qr.SolveVecTo(&bv, false, yv); err != nil {
		return nil, ErrDegenerate
	}

	// Residual sum of squares.
	var fitted mat.VecDense
	fitted.MulVec(X, &bv)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, ErrDegenerate
	}

	sigma2 := ssr / float64(n-k)
	fit := &lmFit{
		coef:   make([]float64, k),
		stderr: make([]float64, k),
		ssr:    ssr,
		nobs:   n,
		k:      k,
	}
	for i := 0; i < k; i++ {
		fit.coef[i] = bv.AtVec(i)
		se := math.Sqrt(sigma2 * inv.At(i, i))
		if !isFinite(fit.coef[i]) || !isFinite(se) {
			return nil, ErrDegenerate
		}
		fit.stderr[i] = se
	}
	return fit, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
