// Package marketgen builds deterministic synthetic OHLCV series for tests.
// Production code must not import it.
package marketgen

import (
	"math"
	"time"

	"PatternScope/internal/domain/models"
)

// Rand is a SplitMix64 generator. Its output is stable across Go releases.
type Rand struct {
	state uint64
}

func New(seed uint64) *Rand { return &Rand{state: seed} }

func (r *Rand) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a uniform value in [0,1).
func (r *Rand) Float64() float64 {
	return float64(r.next()>>11) / (1 << 53)
}

// Norm returns a standard normal draw (Box-Muller, cosine branch).
func (r *Rand) Norm() float64 {
	u1 := 1 - r.Float64()
	u2 := r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Walk returns n closes of a geometric random walk starting at 100.
func Walk(seed uint64, n int, drift, sigma float64) []float64 {
	r := New(seed)
	c := make([]float64, n)
	c[0] = 100
	for i := 1; i < n; i++ {
		c[i] = c[i-1] * math.Exp(drift+sigma*r.Norm())
	}
	return c
}

// ClosesFromReturns compounds log returns from a base of 100.
func ClosesFromReturns(returns []float64) []float64 {
	c := make([]float64, len(returns)+1)
	c[0] = 100
	for i, v := range returns {
		c[i+1] = c[i] * math.Exp(v)
	}
	return c
}

// Constant returns n closes at price.
func Constant(n int, price float64) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = price
	}
	return c
}

// Start is the timestamp of the first generated sample.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Samples wraps closes into daily samples with constant volume.
func Samples(symbol string, closes []float64) []models.MarketSample {
	return SamplesEvery(symbol, closes, 24*time.Hour, nil)
}

// SamplesEvery wraps closes into samples spaced by step. A nil volumes slice means 1000 per bar.
func SamplesEvery(symbol string, closes []float64, step time.Duration, volumes []float64) []models.MarketSample {
	out := make([]models.MarketSample, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		vol := 1000.0
		if volumes != nil {
			vol = volumes[i]
		}
		out[i] = models.MarketSample{
			Symbol:    symbol,
			Timestamp: Start.Add(time.Duration(i) * step),
			Open:      open,
			High:      math.Max(open, c),
			Low:       math.Min(open, c),
			Close:     c,
			Volume:    vol,
		}
	}
	return out
}

// Series builds a detector-ready series directly from closes.
func Series(symbol string, closes []float64) *models.Series {
	samples := Samples(symbol, closes)
	s := &models.Series{
		Symbol:    symbol,
		Timeframe: "1d",
		Times:     make([]time.Time, len(samples)),
		Closes:    append([]float64(nil), closes...),
		Volumes:   make([]float64, len(samples)),
		Returns:   make(models.ReturnSeries, 0, len(closes)-1),
	}
	for i, smp := range samples {
		s.Times[i] = smp.Timestamp
		s.Volumes[i] = smp.Volume
		if i > 0 {
			s.Returns = append(s.Returns, math.Log(closes[i]/closes[i-1]))
		}
	}
	return s
}
