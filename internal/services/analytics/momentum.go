package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

const momentumLookback = 20

// MomentumScore is the sum of the last 20 returns scaled by the share of positive ones.
func MomentumScore(returns []float64) float64 {
	last := returns
	if len(last) > momentumLookback {
		last = last[len(last)-momentumLookback:]
	}
	if len(last) == 0 {
		return 0
	}
	var sum float64
	pos := 0
	for _, r := range last {
		sum += r
		if r > 0 {
			pos++
		}
	}
	return sum * float64(pos) / float64(len(last))
}

// TrendStrength is |corr(index, price)|; ok is false for a flat price series.
func TrendStrength(closes []float64) (float64, bool) {
	idx := make([]float64, len(closes))
	for i := range idx {
		idx[i] = float64(i)
	}
	r, ok := features.Pearson(idx, closes)
	if !ok {
		return 0, false
	}
	return math.Abs(r), true
}

type MomentumDetector struct{}

func NewMomentumDetector() *MomentumDetector { return &MomentumDetector{} }

func (d *MomentumDetector) Type() models.PatternType { return models.PatternMomentum }
func (d *MomentumDetector) Name() string             { return "momentum_trend" }

func (d *MomentumDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	mom := MomentumScore(s.Returns)
	sd, ok := features.StdDev(s.Returns)
	if !ok {
		params := map[string]models.ParamValue{
			"momentum":      models.Num(mom),
			"trendStrength": models.Enum(models.EnumUndefined),
		}
		sig := newSignal(d.Type(), d.Name(), "no return variance", 0, 0, 0, params, at)
		return sig, fmt.Errorf("%w: zero return variance", models.ErrDegenerateInput)
	}

	trend, _ := TrendStrength(s.Closes)
	volAdj := mom / sd
	dir := "flat"
	switch {
	case mom > 0:
		dir = "up"
	case mom < 0:
		dir = "down"
	}
	params := map[string]models.ParamValue{
		"momentum":       models.Num(mom),
		"volAdjMomentum": models.Num(volAdj),
		"trendStrength":  models.Num(trend),
		"direction":      models.Enum(dir),
	}
	desc := fmt.Sprintf("%s momentum %.2f sd, trend strength %.2f", dir, volAdj, trend)
	return newSignal(d.Type(), d.Name(), desc, trend, math.Abs(volAdj)/5, math.Abs(volAdj), params, at), nil
}

var _ domsvc.PatternDetector = (*MomentumDetector)(nil)
