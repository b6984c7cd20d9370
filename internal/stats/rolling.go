package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Tail returns the last n elements of s (all of s when n >= len(s)).
func Tail(s []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Mean is the arithmetic mean. Returns 0 for an empty slice.
func Mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return stat.Mean(s, nil)
}

// Std is the sample standard deviation (n-1 denominator).
// Returns 0 for fewer than two observations.
func Std(s []float64) float64 {
	if len(s) < 2 {
		return 0
	}
	return stat.StdDev(s, nil)
}

// ZScores standardizes the tail of series against its own rolling
// window: z_i = (x_i - mean(window)) / std(window) over the last
// max(window, 5) observations. A zero or non-finite std yields all-zero
// scores rather than infinities.
func ZScores(series []float64, window int) []float64 {
	if window < 5 {
		window = 5
	}
	tail := Tail(series, window)
	if len(tail) == 0 {
		return nil
	}

	mean := Mean(tail)
	std := Std(tail)
	out := make([]float64, len(tail))
	if std <= 0 || !isFinite(std) {
		return out
	}
	for i, v := range tail {
		out[i] = (v - mean) / std
	}
	return out
}

// Returns computes simple period-over-period returns: r_t = x_t/x_{t-1} - 1.
// A zero denominator yields NaN at that position. Output has len(s)-1
// elements; nil for fewer than two observations.
func Returns(s []float64) []float64 {
	if len(s) < 2 {
		return nil
	}
	out := make([]float64, len(s)-1)
	for i := 1; i < len(s); i++ {
		if s[i-1] == 0 {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = s[i]/s[i-1] - 1
	}
	return out
}

// LogReturns computes r_t = ln(x_t / x_{t-1}). Non-positive inputs yield
// NaN at that position.
func LogReturns(s []float64) []float64 {
	if len(s) < 2 {
		return nil
	}
	out := make([]float64, len(s)-1)
	for i := 1; i < len(s); i++ {
		if s[i] <= 0 || s[i-1] <= 0 {
			out[i-1] = math.NaN()
			continue
		}
		out[i-1] = math.Log(s[i] / s[i-1])
	}
	return out
}

// RollingMean returns the windowed mean at each position. The first
// window-1 positions are NaN.
func RollingMean(s []float64, window int) []float64 {
	return rollingApply(s, window, func(w []float64) float64 {
		return stat.Mean(w, nil)
	})
}

// RollingStd returns the windowed sample standard deviation (n-1
// denominator) at each position. The first window-1 positions are NaN.
func RollingStd(s []float64, window int) []float64 {
	return rollingApply(s, window, func(w []float64) float64 {
		return stat.StdDev(w, nil)
	})
}

// RollingCorr returns the windowed Pearson correlation of x and y.
// The first window-1 positions are NaN; so are windows where the
// correlation is undefined.
func RollingCorr(x, y []float64, window int) []float64 {
	if len(x) != len(y) || window < 2 || len(x) < window {
		return nil
	}
	out := make([]float64, len(x))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Correlation(x[i-window+1:i+1], y[i-window+1:i+1], nil)
	}
	return out
}

// RollingOLS fits y against x over each trailing window, returning the
// slope at each position. The first window-1 positions are NaN; so are
// windows where the fit is degenerate.
func RollingOLS(x, y []float64, window int) []float64 {
	if len(x) != len(y) || window < 2 || len(x) < window {
		return nil
	}
	out := make([]float64, len(x))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		fit, err := OLS(x[i-window+1:i+1], y[i-window+1:i+1])
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = fit.Slope
	}
	return out
}

func rollingApply(s []float64, window int, fn func([]float64) float64) []float64 {
	if window < 1 || len(s) < window {
		return nil
	}
	out := make([]float64, len(s))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(s[i-window+1 : i+1])
	}
	return out
}

// Correlation is the Pearson correlation of the tails of x and y over
// the last max(window, 5) observations. Degenerate inputs (mismatched
// length, too few points, zero variance) return the fallback 1.0, the
// neutral value for a pair assumed to co-move until shown otherwise.
func Correlation(x, y []float64, window int) float64 {
	if window < 5 {
		window = 5
	}
	if len(x) != len(y) || len(x) < 2 {
		return 1.0
	}
	xt := Tail(x, window)
	yt := Tail(y, window)
	r := stat.Correlation(xt, yt, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 1.0
	}
	return r
}
