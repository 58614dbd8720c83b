package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

const (
	regimeWindow = 50
	regimeStep   = 25
)

// RegimeShift is one boundary found by SegmentRegimes.
type RegimeShift struct {
	Segment models.RegimeSegment
	// Excess is the largest ratio of a shift to its threshold; > 1 at a boundary.
	Excess float64
}

// SegmentRegimes compares adjacent 50-return windows every 25 returns and
// reports a boundary where the mean moves by more than 2 sd or the stddev by
// more than 0.5 sd of the preceding window. Windows with a flat predecessor are skipped.
func SegmentRegimes(returns []float64) []RegimeShift {
	var out []RegimeShift
	for i := regimeWindow; i+regimeWindow <= len(returns); i += regimeStep {
		before := returns[i-regimeWindow : i]
		after := returns[i : i+regimeWindow]
		sdBefore, ok := features.StdDev(before)
		if !ok {
			continue
		}
		sdAfter, _ := features.StdDev(after)
		meanShift := features.Mean(after) - features.Mean(before)
		volShift := sdAfter - sdBefore

		excess := math.Max(math.Abs(meanShift)/(2*sdBefore), math.Abs(volShift)/(0.5*sdBefore))
		if excess <= 1 {
			continue
		}
		out = append(out, RegimeShift{
			Segment: models.RegimeSegment{
				StartIndex:     i,
				Label:          regimeLabel(meanShift, sdBefore, sdAfter),
				StabilityScore: 1 / (1 + math.Abs(volShift)),
			},
			Excess: excess,
		})
	}
	return out
}

func regimeLabel(meanShift, sdBefore, sdAfter float64) models.RegimeLabel {
	highVol := sdAfter > 1.5*sdBefore
	switch {
	case meanShift >= 0 && highVol:
		return models.RegimeBullHighVol
	case meanShift >= 0:
		return models.RegimeBull
	case highVol:
		return models.RegimeBearHighVol
	default:
		return models.RegimeBear
	}
}

// Segments returns only the regime segments of SegmentRegimes.
func Segments(shifts []RegimeShift) []models.RegimeSegment {
	out := make([]models.RegimeSegment, len(shifts))
	for i, sh := range shifts {
		out[i] = sh.Segment
	}
	return out
}

type RegimeDetector struct{}

func NewRegimeDetector() *RegimeDetector { return &RegimeDetector{} }

func (d *RegimeDetector) Type() models.PatternType { return models.PatternRegimeShift }
func (d *RegimeDetector) Name() string             { return "rolling_regime" }

func (d *RegimeDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	shifts := SegmentRegimes(s.Returns)
	if len(shifts) == 0 {
		params := map[string]models.ParamValue{"boundaries": models.Num(0)}
		return newSignal(d.Type(), d.Name(), "no regime boundary", 0, 0, 0, params, at), nil
	}

	var maxExcess, stab float64
	for _, sh := range shifts {
		maxExcess = math.Max(maxExcess, sh.Excess)
		stab += sh.Segment.StabilityScore
	}
	stab /= float64(len(shifts))
	last := shifts[len(shifts)-1].Segment
	params := map[string]models.ParamValue{
		"boundaries":    models.Num(float64(len(shifts))),
		"maxExcess":     models.Num(maxExcess),
		"meanStability": models.Num(stab),
		"lastLabel":     models.Enum(string(last.Label)),
		"lastStart":     models.Num(float64(last.StartIndex)),
	}
	desc := fmt.Sprintf("%d regime boundaries, latest %s at return %d", len(shifts), last.Label, last.StartIndex)
	return newSignal(d.Type(), d.Name(), desc, 1-1/maxExcess, stab, float64(len(shifts)), params, at), nil
}

var _ domsvc.PatternDetector = (*RegimeDetector)(nil)
