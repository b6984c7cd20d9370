package stats

import "gonum.org/v1/gonum/stat/distuv"

// MacKinnon (1994, 2010) response-surface constants for the
// Dickey-Fuller tau distribution with a constant term and a single
// series (no additional cointegrating regressors).

const (
	tauMax  = 2.74
	tauMin  = -18.83
	tauStar = -1.61
)

// Polynomial coefficients in ascending powers of the test statistic.
var (
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// Critical value surfaces: cv = b0 + b1/n + b2/n^2 + b3/n^3.
var tauCrit = map[string][4]float64{
	"1%":  {-3.43035, -6.5393, -16.786, -79.433},
	"5%":  {-2.86154, -2.8903, -4.234, -40.040},
	"10%": {-2.56677, -1.5384, -2.809, 0},
}

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

func polyval(coefs []float64, x float64) float64 {
	v, p := 0.0, 1.0
	for _, c := range coefs {
		v += c * p
		p *= x
	}
	return v
}

// mackinnonP maps an ADF test statistic to an approximate asymptotic
// p-value. Statistics beyond the tabulated range clip to 1 or 0.
func mackinnonP(stat float64) float64 {
	if stat > tauMax {
		return 1.0
	}
	if stat < tauMin {
		return 0.0
	}
	coefs := tauLargeP
	if stat <= tauStar {
		coefs = tauSmallP
	}
	return stdNormal.CDF(polyval(coefs, stat))
}

// mackinnonCrit returns finite-sample critical values at the 1%, 5% and
// 10% levels for a regression with nobs observations.
func mackinnonCrit(nobs int) map[string]float64 {
	n := float64(nobs)
	out := make(map[string]float64, len(tauCrit))
	for level, b := range tauCrit {
		out[level] = b[0] + b[1]/n + b[2]/(n*n) + b[3]/(n*n*n)
	}
	return out
}
