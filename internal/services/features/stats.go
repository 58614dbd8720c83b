package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// StdDev returns the sample standard deviation (n-1).
// ok is false when fewer than 2 values are given or all values are equal.
func StdDev(x []float64) (float64, bool) {
	if len(x) < 2 {
		return 0, false
	}
	sd := stat.StdDev(x, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 0, false
	}
	return sd, true
}

// Autocorrelation returns the biased autocorrelation for lags 1..maxLag.
// Lags >= len(x) are omitted; a constant series yields an empty result.
func Autocorrelation(x []float64, maxLag int) []float64 {
	n := len(x)
	if n < 2 || maxLag < 1 {
		return nil
	}
	m := Mean(x)
	var denom float64
	for _, v := range x {
		denom += (v - m) * (v - m)
	}
	if denom == 0 {
		return nil
	}
	if maxLag > n-1 {
		maxLag = n - 1
	}
	out := make([]float64, maxLag)
	for k := 1; k <= maxLag; k++ {
		var num float64
		for t := 0; t+k < n; t++ {
			num += (x[t] - m) * (x[t+k] - m)
		}
		out[k-1] = num / denom
	}
	return out
}

// RollingMean returns the mean of every full window; len = len(x)-window+1.
func RollingMean(x []float64, window int) []float64 {
	if window < 1 || len(x) < window {
		return nil
	}
	out := make([]float64, 0, len(x)-window+1)
	for i := window; i <= len(x); i++ {
		out = append(out, Mean(x[i-window:i]))
	}
	return out
}

// RollingStdDev returns the sample stddev of every full window.
// Constant windows contribute 0.
func RollingStdDev(x []float64, window int) []float64 {
	if window < 2 || len(x) < window {
		return nil
	}
	out := make([]float64, 0, len(x)-window+1)
	for i := window; i <= len(x); i++ {
		sd, _ := StdDev(x[i-window : i])
		out = append(out, sd)
	}
	return out
}

// Pearson returns the correlation of x and y.
// ok is false for mismatched lengths or when either side has zero variance.
func Pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) {
		return 0, false
	}
	if _, ok := StdDev(x); !ok {
		return 0, false
	}
	if _, ok := StdDev(y); !ok {
		return 0, false
	}
	return stat.Correlation(x, y, nil), true
}

// OLSSlope fits y = a + b*x and returns the intercept, slope and residual stddev (n-2).
func OLSSlope(x, y []float64) (alpha, beta, residStd float64, ok bool) {
	if len(x) != len(y) || len(x) < 3 {
		return 0, 0, 0, false
	}
	if _, varies := StdDev(x); !varies {
		return 0, 0, 0, false
	}
	alpha, beta = stat.LinearRegression(x, y, nil, false)
	var ss float64
	for i := range x {
		e := y[i] - (alpha + beta*x[i])
		ss += e * e
	}
	residStd = math.Sqrt(ss / float64(len(x)-2))
	return alpha, beta, residStd, true
}

// Percentile returns the empirical p-quantile (p in [0,1]) of x. x is not modified.
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
