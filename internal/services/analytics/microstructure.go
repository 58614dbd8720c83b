package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

// VolumeProfile classifies recent volume against the window average.
type VolumeProfile string

const (
	ProfileHigh   VolumeProfile = "High"
	ProfileNormal VolumeProfile = "Normal"
	ProfileLow    VolumeProfile = "Low"

	profileTrailing = 10
)

func (p VolumeProfile) weight() float64 {
	switch p {
	case ProfileHigh:
		return 1
	case ProfileLow:
		return 0.3
	default:
		return 0.6
	}
}

// VWAP is sum(close*volume)/sum(volume); ok is false when volume is zero.
func VWAP(closes, volumes []float64) (float64, bool) {
	var pv, v float64
	for i := range closes {
		pv += closes[i] * volumes[i]
		v += volumes[i]
	}
	if v == 0 {
		return 0, false
	}
	return pv / v, true
}

// Profile compares the trailing 10-bar average volume to the window average.
func Profile(volumes []float64) VolumeProfile {
	avg := features.Mean(volumes)
	if avg == 0 {
		return ProfileNormal
	}
	tail := volumes
	if len(tail) > profileTrailing {
		tail = tail[len(tail)-profileTrailing:]
	}
	recent := features.Mean(tail)
	switch {
	case recent > 1.5*avg:
		return ProfileHigh
	case recent < 0.5*avg:
		return ProfileLow
	default:
		return ProfileNormal
	}
}

// OrderFlowImbalance is (up volume - down volume) / volume, with bars
// classified by close against the previous close. The result lies in [-1,1].
func OrderFlowImbalance(closes, volumes []float64) float64 {
	var up, down, total float64
	for i := 1; i < len(closes); i++ {
		total += volumes[i]
		switch {
		case closes[i] > closes[i-1]:
			up += volumes[i]
		case closes[i] < closes[i-1]:
			down += volumes[i]
		}
	}
	if total == 0 {
		return 0
	}
	return (up - down) / total
}

type MicrostructureDetector struct{}

func NewMicrostructureDetector() *MicrostructureDetector { return &MicrostructureDetector{} }

func (d *MicrostructureDetector) Type() models.PatternType { return models.PatternMicrostruct }
func (d *MicrostructureDetector) Name() string             { return "vwap_order_flow" }

func (d *MicrostructureDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	vwap, ok := VWAP(s.Closes, s.Volumes)
	profile := Profile(s.Volumes)
	if !ok {
		params := map[string]models.ParamValue{
			"vwap":        models.Enum(models.EnumUndefined),
			"vwapDefined": models.Enum(models.EnumUndefined),
			"profile":     models.Enum(string(profile)),
			"imbalance":   models.Num(0),
		}
		sig := newSignal(d.Type(), d.Name(), "no traded volume", 0, 0, 0, params, at)
		return sig, fmt.Errorf("%w: zero volume", models.ErrDegenerateInput)
	}

	imb := OrderFlowImbalance(s.Closes, s.Volumes)
	last := s.Closes[len(s.Closes)-1]
	dev := math.Abs(last/vwap-1) * 100
	params := map[string]models.ParamValue{
		"vwap":        models.Num(vwap),
		"vwapDefined": models.Enum(models.EnumDefined),
		"profile":     models.Enum(string(profile)),
		"imbalance":   models.Num(imb),
		"vwapDevPct":  models.Num(dev),
	}
	desc := fmt.Sprintf("order-flow imbalance %.2f, %s volume, last close %.2f%% from VWAP", imb, profile, dev)
	return newSignal(d.Type(), d.Name(), desc, math.Abs(imb), math.Abs(imb)*profile.weight(), dev, params, at), nil
}

var _ domsvc.PatternDetector = (*MicrostructureDetector)(nil)
