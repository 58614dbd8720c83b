package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternScope/internal/domain/models"
)

func TestLogReturns(t *testing.T) {
	_, err := LogReturns([]float64{1})
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	r, err := LogReturns([]float64{100, 110, 121})
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.InDelta(t, math.Log(1.1), r[0], 1e-12)
	assert.InDelta(t, math.Log(1.1), r[1], 1e-12)

	for _, bad := range [][]float64{
		{100, 110, 0, 121},
		{100, -5, 121},
		{100, math.NaN(), 121},
		{100, math.Inf(1)},
	} {
		_, err := LogReturns(bad)
		assert.True(t, errors.Is(err, models.ErrInvalidSample), "%v", bad)
	}
}

func TestStdDevAndMean(t *testing.T) {
	sd, ok := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(32.0/7), sd, 1e-12)
	assert.Equal(t, 5.0, Mean([]float64{2, 4, 4, 4, 5, 5, 7, 9}))

	_, ok = StdDev([]float64{3, 3, 3})
	assert.False(t, ok)
	_, ok = StdDev([]float64{3})
	assert.False(t, ok)
	assert.Zero(t, Mean(nil))
}

func TestAutocorrelation(t *testing.T) {
	assert.Empty(t, Autocorrelation([]float64{1, 1, 1, 1}, 3))

	acf := Autocorrelation([]float64{1, -1, 1, -1}, 10)
	require.Len(t, acf, 3)
	assert.InDelta(t, -0.75, acf[0], 1e-12)
	assert.InDelta(t, 0.5, acf[1], 1e-12)
	assert.InDelta(t, -0.25, acf[2], 1e-12)
}

func TestRolling(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, []float64{2, 3, 4}, RollingMean(x, 3))
	sd := RollingStdDev(x, 3)
	require.Len(t, sd, 3)
	for _, v := range sd {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
	assert.Nil(t, RollingMean(x, 6))
}

func TestPearsonAndOLS(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{3, 5, 7, 9, 11}
	r, ok := Pearson(x, y)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	_, ok = Pearson(x, []float64{1, 1, 1, 1, 1})
	assert.False(t, ok)

	a, b, resid, ok := OLSSlope(x, y)
	require.True(t, ok)
	assert.InDelta(t, 1.0, a, 1e-9)
	assert.InDelta(t, 2.0, b, 1e-9)
	assert.InDelta(t, 0.0, resid, 1e-9)
}

func TestPercentile(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		x[i] = float64(100 - i)
	}
	p5 := Percentile(x, 0.05)
	assert.GreaterOrEqual(t, p5, 5.0)
	assert.LessOrEqual(t, p5, 6.0)
	assert.Equal(t, 100.0, x[0])
	assert.Zero(t, Percentile(nil, 0.05))
}

func TestBarsPerYearAndClamp(t *testing.T) {
	assert.Equal(t, 252.0, BarsPerYear("1d"))
	assert.Equal(t, 365.0*24, BarsPerYear("1h"))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.0, Clamp01(-1))
}

func TestBuildSeries(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	samples := make([]models.MarketSample, models.MinSamples)
	for i := range samples {
		samples[i] = models.MarketSample{Symbol: "S", Timestamp: start.Add(time.Duration(i) * time.Hour), Close: 100 + float64(i), Volume: 10}
	}
	w, err := models.NewAnalysisWindow("S", "1h", samples)
	require.NoError(t, err)
	s, err := BuildSeries(w)
	require.NoError(t, err)
	assert.Len(t, s.Returns, models.MinSamples-1)
	assert.Equal(t, time.UTC, s.Times[0].Location())
	assert.Equal(t, "1h", s.Timeframe)
}
