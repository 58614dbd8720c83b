package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternScope/internal/domain/models"
	"PatternScope/internal/testutil/marketgen"
)

func TestConstantPriceIsNeutral(t *testing.T) {
	s := marketgen.Series("FLAT", marketgen.Constant(100, 100.0))

	mr, err := NewMeanReversionDetector().Detect(s)
	assert.True(t, errors.Is(err, models.ErrDegenerateInput))
	assert.Zero(t, mr.Confidence)
	assert.Zero(t, mr.Strength)
	hl, ok := mr.Parameters["halfLife"].EnumValue()
	assert.True(t, ok)
	assert.Equal(t, models.EnumInfinite, hl)

	mom, err := NewMomentumDetector().Detect(s)
	assert.True(t, errors.Is(err, models.ErrDegenerateInput))
	assert.Zero(t, mom.Confidence)
	assert.Zero(t, mom.Strength)
	trend, _ := mom.Parameters["trendStrength"].EnumValue()
	assert.Equal(t, models.EnumUndefined, trend)

	assert.Equal(t, 0.5, HurstExponent(s.Returns))
}

func TestHurstRandomWalk(t *testing.T) {
	// Uncorrected R/S overstates H on short samples: at n=200 the mean over
	// seeds 1..200 is about 0.606 and 108 of them land above 0.60. The band
	// holds for this seed only; do not tune seeds to hide a regression.
	s := marketgen.Series("RW", marketgen.Walk(42, 200, 0, 0.01))
	h := HurstExponent(s.Returns)
	assert.GreaterOrEqual(t, h, 0.40)
	assert.LessOrEqual(t, h, 0.60)

	sig, err := NewHurstDetector().Detect(s)
	require.NoError(t, err)
	fd, ok := sig.Parameters["fractalDimension"].Float()
	require.True(t, ok)
	assert.InDelta(t, 2-h, fd, 1e-12)
	state, _ := sig.Parameters["selfSimilarityState"].EnumValue()
	assert.Equal(t, models.EnumDefined, state)
}

func TestHurstShortSeries(t *testing.T) {
	assert.Equal(t, 0.5, HurstExponent(make([]float64, 19)))

	// 30 returns only admit lag 10, a single point.
	r := marketgen.New(3)
	short := make([]float64, 30)
	for i := range short {
		short[i] = r.Norm()
	}
	assert.Equal(t, 0.5, HurstExponent(short))
}

func TestSelfSimilarityNeedsHundredSamples(t *testing.T) {
	_, ok := SelfSimilarity(marketgen.Walk(5, 99, 0, 0.01))
	assert.False(t, ok)
	v, ok := SelfSimilarity(marketgen.Walk(5, 120, 0, 0.01))
	assert.True(t, ok)
	assert.LessOrEqual(t, math.Abs(v), 1.0)
}

func TestHalfLife(t *testing.T) {
	alt := make([]float64, 40)
	for i := range alt {
		alt[i] = 1
		if i%2 == 1 {
			alt[i] = -1
		}
	}
	assert.True(t, math.IsInf(HalfLife(alt), 1))

	trend := make([]float64, 40)
	for i := range trend {
		trend[i] = float64(i)
	}
	hl := HalfLife(trend)
	assert.False(t, math.IsInf(hl, 0))
	assert.Greater(t, hl, 0.0)
}

func TestMeanReversionOnReversion(t *testing.T) {
	// Log price pulled hard toward 100.
	r := marketgen.New(9)
	closes := make([]float64, 300)
	lp := math.Log(100)
	for i := range closes {
		lp = math.Log(100) + 0.3*(lp-math.Log(100)) + 0.01*r.Norm()
		closes[i] = math.Exp(lp)
	}
	sig, err := NewMeanReversionDetector().Detect(marketgen.Series("MR", closes))
	require.NoError(t, err)
	tStat, _ := sig.Parameters["tStat"].Float()
	assert.Less(t, tStat, -4.0)
	assert.Equal(t, 1.0, sig.Confidence)
	assert.InDelta(t, math.Abs(tStat), sig.Strength, 1e-12)
}

func TestMomentumScore(t *testing.T) {
	returns := make([]float64, 30)
	for i := 10; i < 30; i++ {
		returns[i] = 0.01
	}
	returns[29] = -0.01
	// 19 positive of 20, sum 0.18.
	assert.InDelta(t, 0.18*19/20, MomentumScore(returns), 1e-12)

	s := marketgen.Series("UP", marketgen.Walk(1, 120, 0.01, 0.005))
	sig, err := NewMomentumDetector().Detect(s)
	require.NoError(t, err)
	dir, _ := sig.Parameters["direction"].EnumValue()
	assert.Equal(t, "up", dir)
	assert.Greater(t, sig.Confidence, 0.9)
}

func TestGARCHClosedForm(t *testing.T) {
	// alpha 0.1, beta 0.8 give rho1 0.14 and phi 0.9.
	a, b := garchFromACF(0.14, 0.126)
	assert.InDelta(t, 0.1, a, 1e-9)
	assert.InDelta(t, 0.8, b, 1e-9)

	a, b = garchFromACF(-0.1, 0.2)
	assert.Zero(t, a)
	assert.Zero(t, b)

	// phi outside (rho1, 1) falls back to ARCH(1).
	a, b = garchFromACF(0.3, 0.05)
	assert.Equal(t, 0.3, a)
	assert.Zero(t, b)
}

func TestRegimeBoundary(t *testing.T) {
	r := marketgen.New(7)
	returns := make([]float64, 200)
	for i := range returns {
		z := r.Norm()
		if i < 100 {
			returns[i] = 0.01 * z
		} else {
			returns[i] = 0.05 + 0.03*z
		}
	}
	s := marketgen.Series("REG", marketgen.ClosesFromReturns(returns))
	shifts := SegmentRegimes(s.Returns)
	require.NotEmpty(t, shifts)

	found := false
	for _, sh := range shifts {
		if sh.Segment.Label == models.RegimeBullHighVol && math.Abs(float64(sh.Segment.StartIndex-100)) <= 5 {
			found = true
		}
		assert.Greater(t, sh.Excess, 1.0)
	}
	assert.True(t, found, "expected a Bull HighVol boundary near 100, got %+v", Segments(shifts))

	sig, err := NewRegimeDetector().Detect(s)
	require.NoError(t, err)
	assert.Equal(t, float64(len(shifts)), sig.Strength)
	assert.Greater(t, sig.Confidence, 0.0)
}

func TestRegimeLabels(t *testing.T) {
	assert.Equal(t, models.RegimeBull, regimeLabel(0.1, 1, 1))
	assert.Equal(t, models.RegimeBear, regimeLabel(-0.1, 1, 1))
	assert.Equal(t, models.RegimeBullHighVol, regimeLabel(0.1, 1, 2))
	assert.Equal(t, models.RegimeBearHighVol, regimeLabel(-0.1, 1, 2))
}

func TestAnomalyInjectedJumps(t *testing.T) {
	r := marketgen.New(11)
	returns := make([]float64, 200)
	for i := range returns {
		returns[i] = 0.01 * r.Norm()
	}
	returns[50], returns[100], returns[150] = 0.12, -0.12, 0.12

	s := marketgen.Series("JMP", marketgen.ClosesFromReturns(returns))
	st, ok := CountAnomalies(s.Returns)
	require.True(t, ok)
	assert.Equal(t, 3, st.Outliers)
	assert.Equal(t, 3, st.Jumps)

	sig, err := NewAnomalyDetector().Detect(s)
	require.NoError(t, err)
	assert.InDelta(t, 3.0/200/0.05, sig.Confidence, 1e-12)
	assert.InDelta(t, st.MaxZ, sig.Strength, 1e-12)
}

func TestVWAPUniformVolume(t *testing.T) {
	closes := marketgen.Walk(4, 80, 0, 0.02)
	s := marketgen.Series("VW", closes)
	vwap, ok := VWAP(s.Closes, s.Volumes)
	require.True(t, ok)
	var sum float64
	for _, c := range closes {
		sum += c
	}
	assert.InDelta(t, sum/float64(len(closes)), vwap, 1e-9)
}

func TestMicrostructureZeroVolume(t *testing.T) {
	s := marketgen.Series("NOVOL", marketgen.Walk(4, 60, 0, 0.02))
	for i := range s.Volumes {
		s.Volumes[i] = 0
	}
	sig, err := NewMicrostructureDetector().Detect(s)
	assert.True(t, errors.Is(err, models.ErrDegenerateInput))
	v, _ := sig.Parameters["vwapDefined"].EnumValue()
	assert.Equal(t, models.EnumUndefined, v)
	assert.Zero(t, sig.Confidence)
}

func TestVolumeProfileAndImbalance(t *testing.T) {
	vols := make([]float64, 50)
	for i := range vols {
		vols[i] = 100
	}
	assert.Equal(t, ProfileNormal, Profile(vols))
	for i := 40; i < 50; i++ {
		vols[i] = 1000
	}
	assert.Equal(t, ProfileHigh, Profile(vols))
	for i := 40; i < 50; i++ {
		vols[i] = 1
	}
	assert.Equal(t, ProfileLow, Profile(vols))

	closes := []float64{10, 11, 12, 11}
	imb := OrderFlowImbalance(closes, []float64{5, 1, 1, 2})
	assert.InDelta(t, 0.0, imb, 1e-12)
	imb = OrderFlowImbalance(closes, []float64{5, 3, 1, 0})
	assert.InDelta(t, 1.0, imb, 1e-12)
}

func TestSeasonalBucketsOmitSingletons(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	buckets := SeasonalBuckets(times, []float64{100, 101, 102})
	require.Len(t, buckets, 2)
	assert.Equal(t, "hour", buckets[0].Kind)
	assert.Equal(t, 3, buckets[0].Occurrences)
	assert.Equal(t, "month", buckets[1].Kind)
	assert.Equal(t, 1, buckets[1].Key)
	assert.InDelta(t, math.Log(101.0/100), buckets[1].MeanReturn, 1e-12)
	assert.False(t, buckets[1].TDefined)
}

func TestSeasonalityHourly(t *testing.T) {
	// Ten days of hourly bars. Hour 9 climbs 1% a day with an alternating
	// wiggle; every other hour flips around 100. Only hour 9 has a real edge.
	closes := make([]float64, 24*10)
	for i := range closes {
		day, hour := i/24, i%24
		sign := 1.0
		if day%2 == 1 {
			sign = -1
		}
		if hour == 9 {
			closes[i] = 100 * math.Exp(0.01*float64(day)+0.002*sign)
		} else {
			closes[i] = 100 * math.Exp(0.001*sign)
		}
	}
	samples := marketgen.SamplesEvery("HR", closes, time.Hour, nil)
	s := marketgen.Series("HR", closes)
	for i, smp := range samples {
		s.Times[i] = smp.Timestamp
	}

	sig, err := NewSeasonalityDetector().Detect(s)
	require.NoError(t, err)

	kind, _ := sig.Parameters["bucketKind"].EnumValue()
	assert.Equal(t, "hour", kind)
	key, ok := sig.Parameters["bucketKey"].Float()
	require.True(t, ok)
	assert.Equal(t, 9.0, key)
	occ, _ := sig.Parameters["occurrences"].Float()
	assert.Equal(t, 10.0, occ)
	// Day-to-day returns telescope: log(c9/c0)/9 = (0.09 - 0.004)/9.
	mean, ok := sig.Parameters["meanReturn"].Float()
	require.True(t, ok)
	assert.InDelta(t, 0.086/9, mean, 1e-12)
	// Returns are 0.006 five times and 0.014 four times.
	tstat, _ := sig.Parameters["tStat"].Float()
	assert.InDelta(t, 6.80, tstat, 0.01)
	assert.Equal(t, 1.0, sig.Confidence)
	assert.Equal(t, 1.0, sig.Exploitability)
}

func TestAllDetectorsBounded(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 42} {
		s := marketgen.Series("ANY", marketgen.Walk(seed, 250, 0.0005, 0.015))
		for _, d := range DefaultDetectors() {
			sig, err := d.Detect(s)
			require.NoError(t, err, d.Name())
			assert.Equal(t, d.Type(), sig.Type)
			assert.GreaterOrEqual(t, sig.Confidence, 0.0, d.Name())
			assert.LessOrEqual(t, sig.Confidence, 1.0, d.Name())
			assert.GreaterOrEqual(t, sig.Exploitability, 0.0, d.Name())
			assert.LessOrEqual(t, sig.Exploitability, 1.0, d.Name())
			assert.False(t, math.IsNaN(sig.Strength), d.Name())

			again, _ := d.Detect(s)
			assert.Equal(t, sig, again, d.Name())
		}
	}
}
