package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

var hurstLags = []int{10, 20, 50, 100}

const (
	minHurstReturns       = 20
	minSelfSimilarSamples = 100
)

// HurstExponent estimates H by rescaled-range analysis.
// It returns 0.5 when the series is too short or too flat to say anything.
func HurstExponent(returns []float64) float64 {
	n := len(returns)
	if n < minHurstReturns {
		return 0.5
	}
	var xs, ys []float64
	for _, lag := range hurstLags {
		if float64(lag) >= float64(n)/2 {
			continue
		}
		var sum float64
		var valid int
		for c := 0; c+lag <= n; c += lag {
			rs, ok := rescaledRange(returns[c : c+lag])
			if !ok {
				continue
			}
			sum += rs
			valid++
		}
		if valid == 0 {
			continue
		}
		xs = append(xs, math.Log(float64(lag)))
		ys = append(ys, math.Log(sum/float64(valid)))
	}
	if len(xs) < 2 {
		return 0.5
	}
	r, ok := features.Pearson(xs, ys)
	if !ok {
		return 0.5
	}
	sx, _ := features.StdDev(xs)
	sy, _ := features.StdDev(ys)
	return features.Clamp01(r * sy / sx)
}

func rescaledRange(chunk []float64) (float64, bool) {
	sd, ok := features.StdDev(chunk)
	if !ok {
		return 0, false
	}
	m := features.Mean(chunk)
	var cum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range chunk {
		cum += v - m
		lo = math.Min(lo, cum)
		hi = math.Max(hi, cum)
	}
	return (hi - lo) / sd, true
}

// SelfSimilarity correlates the returns of the two halves of the price series.
// ok is false below 100 samples or when either half is flat.
func SelfSimilarity(closes []float64) (float64, bool) {
	if len(closes) < minSelfSimilarSamples {
		return 0, false
	}
	half := len(closes) / 2
	first, err := features.LogReturns(closes[:half])
	if err != nil {
		return 0, false
	}
	second, err := features.LogReturns(closes[half : 2*half])
	if err != nil {
		return 0, false
	}
	return features.Pearson(first, second)
}

// HurstDetector reports persistence or anti-persistence relative to a random walk.
type HurstDetector struct{}

func NewHurstDetector() *HurstDetector { return &HurstDetector{} }

func (d *HurstDetector) Type() models.PatternType { return models.PatternFractal }
func (d *HurstDetector) Name() string             { return "hurst_fractal" }

func (d *HurstDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	h := HurstExponent(s.Returns)
	dev := math.Abs(h - 0.5)

	params := map[string]models.ParamValue{
		"hurst":            models.Num(h),
		"fractalDimension": models.Num(2 - h),
		"returnCount":      models.Num(float64(len(s.Returns))),
	}
	if ss, ok := SelfSimilarity(s.Closes); ok {
		params["selfSimilarity"] = models.Num(ss)
		params["selfSimilarityState"] = models.Enum(models.EnumDefined)
	} else {
		params["selfSimilarity"] = models.Num(0)
		params["selfSimilarityState"] = models.Enum(models.EnumUndefined)
	}

	kind := "random walk"
	switch {
	case h > 0.55:
		kind = "persistent"
	case h < 0.45:
		kind = "anti-persistent"
	}
	desc := fmt.Sprintf("Hurst %.3f (%s), fractal dimension %.3f", h, kind, 2-h)
	return newSignal(d.Type(), d.Name(), desc, dev/0.25, dev*2, dev*10, params, detectedAt(s)), nil
}

var _ domsvc.PatternDetector = (*HurstDetector)(nil)
