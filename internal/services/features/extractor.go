package features

import (
	"fmt"
	"math"
	"time"

	"PatternScope/internal/domain/models"
)

// LogReturns computes log returns r_t = ln(P_t / P_{t-1}).
// Every price must be finite and positive.
func LogReturns(prices []float64) (models.ReturnSeries, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: log returns need 2 prices, got %d", models.ErrInsufficientData, len(prices))
	}
	for i, p := range prices {
		if !(p > 0) || math.IsInf(p, 1) {
			return nil, fmt.Errorf("%w: price %v at index %d", models.ErrInvalidSample, p, i)
		}
	}
	out := make(models.ReturnSeries, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out, nil
}

// BuildSeries derives the read-only view detectors work on.
func BuildSeries(w *models.AnalysisWindow) (*models.Series, error) {
	samples := w.Samples()
	s := &models.Series{
		Symbol:    w.Symbol(),
		Timeframe: w.Timeframe(),
		Times:     make([]time.Time, len(samples)),
		Closes:    make([]float64, len(samples)),
		Volumes:   make([]float64, len(samples)),
	}
	for i, smp := range samples {
		s.Times[i] = smp.Timestamp.UTC()
		s.Closes[i] = smp.Close
		s.Volumes[i] = smp.Volume
	}
	r, err := LogReturns(s.Closes)
	if err != nil {
		return nil, err
	}
	s.Returns = r
	return s, nil
}

// RealizedVolatility annualises the stddev of the trailing window of returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sd, ok := StdDev(logReturns[len(logReturns)-window:])
	if !ok {
		return 0
	}
	return sd * math.Sqrt(barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for a timeframe.
func BarsPerYear(tf string) float64 {
	switch tf {
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "1h":
		return 365 * 24
	case "1d":
		return 252
	default:
		return 252
	}
}

// AlignTo rounds t down to the timeframe boundary.
func AlignTo(t time.Time, tf string) time.Time {
	switch tf {
	case "1m":
		return t.Truncate(time.Minute)
	case "5m":
		return t.Truncate(5 * time.Minute)
	case "1h":
		return t.Truncate(time.Hour)
	case "1d":
		return t.Truncate(24 * time.Hour)
	default:
		return t.Truncate(time.Minute)
	}
}

// Duration returns the length of one bar.
func Duration(tf string) time.Duration {
	switch tf {
	case "5m":
		return 5 * time.Minute
	case "1h":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Minute
	}
}
