package stats

import (
	"math"
	"testing"
)

func TestOLSKnownFit(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2.1, 3.9, 6.2, 8.1, 9.8}

	res, err := OLS(x, y)
	if err != nil {
		t.Fatalf("OLS: %v", err)
	}
	if math.Abs(res.Slope-1.95) > 0.1 {
		t.Errorf("Slope = %v, want ~1.95", res.Slope)
	}
	if math.Abs(res.Intercept-0.1) > 0.3 {
		t.Errorf("Intercept = %v, want ~0.1", res.Intercept)
	}
	if res.R2 < 0.99 {
		t.Errorf("R2 = %v, want near 1", res.R2)
	}
	if res.N != 5 {
		t.Errorf("N = %d, want 5", res.N)
	}
	// A fit this tight should reject slope = 0 decisively.
	if res.StdErr <= 0 {
		t.Errorf("StdErr = %v, want > 0", res.StdErr)
	}
	if res.TStat < 10 {
		t.Errorf("TStat = %v, want large positive", res.TStat)
	}
	if res.PValue >= 0.01 {
		t.Errorf("PValue = %v, want < 0.01", res.PValue)
	}
}

func TestOLSSlopeInference(t *testing.T) {
	// Pure noise around a constant: the slope should be insignificant.
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := []float64{5.1, 4.9, 5.2, 4.8, 5.0, 5.1, 4.9, 5.0}

	res, err := OLS(x, y)
	if err != nil {
		t.Fatalf("OLS: %v", err)
	}
	if res.PValue < 0.05 {
		t.Errorf("PValue = %v, want >= 0.05 for flat noise", res.PValue)
	}

	// Exact line: zero residuals, infinite t.
	yl := []float64{3, 5, 7, 9, 11, 13, 15, 17}
	resL, err := OLS(x, yl)
	if err != nil {
		t.Fatalf("OLS: %v", err)
	}
	if !math.IsInf(resL.TStat, 1) {
		t.Errorf("TStat = %v, want +Inf for perfect fit", resL.TStat)
	}
	if resL.PValue != 0 {
		t.Errorf("PValue = %v, want 0 for perfect fit", resL.PValue)
	}
}

func TestOLSExactRecovery(t *testing.T) {
	x := []float64{-3, -1, 0, 2, 5, 9}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 4.5 - 2.25*v
	}

	res, err := OLS(x, y)
	if err != nil {
		t.Fatalf("OLS: %v", err)
	}
	if math.Abs(res.Slope+2.25) > 1e-9 {
		t.Errorf("Slope = %v, want -2.25", res.Slope)
	}
	if math.Abs(res.Intercept-4.5) > 1e-9 {
		t.Errorf("Intercept = %v, want 4.5", res.Intercept)
	}
}

func TestOLSErrors(t *testing.T) {
	if _, err := OLS([]float64{1}, []float64{2}); err != ErrInsufficientData {
		t.Errorf("single point: err = %v, want ErrInsufficientData", err)
	}
	if _, err := OLS([]float64{3, 3, 3}, []float64{1, 2, 3}); err != ErrDegenerate {
		t.Errorf("constant x: err = %v, want ErrDegenerate", err)
	}
	if _, err := OLS([]float64{1, 2}, []float64{1, math.NaN()}); err != ErrDegenerate {
		t.Errorf("NaN input: err = %v, want ErrDegenerate", err)
	}
	if _, err := OLS([]float64{1, 2, 3}, []float64{1, 2}); err != ErrDegenerate {
		t.Errorf("length mismatch: err = %v, want ErrDegenerate", err)
	}
}
