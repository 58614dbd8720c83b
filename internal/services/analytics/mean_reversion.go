package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

// UnitRootStat regresses the log-price change on the previous log price and
// returns the approximate t-statistic of the slope. Negative values favour reversion.
func UnitRootStat(closes []float64) (float64, bool) {
	if len(closes) < 4 {
		return 0, false
	}
	logp := make([]float64, len(closes))
	for i, c := range closes {
		if c <= 0 {
			return 0, false
		}
		logp[i] = math.Log(c)
	}
	x := logp[:len(logp)-1]
	y := make([]float64, len(x))
	for i := range y {
		y[i] = logp[i+1] - logp[i]
	}
	_, beta, resid, ok := features.OLSSlope(x, y)
	if !ok || resid == 0 {
		return 0, false
	}
	return beta / (resid / math.Sqrt(float64(len(y)))), true
}

// HalfLife is the AR(1) half-life from the lag-1 autocorrelation of returns.
// It is +Inf when the autocorrelation is outside (0,1).
func HalfLife(returns []float64) float64 {
	acf := features.Autocorrelation(returns, 1)
	if len(acf) == 0 {
		return math.Inf(1)
	}
	rho := acf[0]
	if rho <= 0 || rho >= 1 {
		return math.Inf(1)
	}
	return math.Log(0.5) / math.Log(rho)
}

type MeanReversionDetector struct{}

func NewMeanReversionDetector() *MeanReversionDetector { return &MeanReversionDetector{} }

func (d *MeanReversionDetector) Type() models.PatternType { return models.PatternMeanReversion }
func (d *MeanReversionDetector) Name() string             { return "unit_root_half_life" }

func (d *MeanReversionDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	if _, ok := features.StdDev(s.Returns); !ok {
		params := map[string]models.ParamValue{
			"tStat":    models.Num(0),
			"halfLife": models.Num(math.Inf(1)),
		}
		sig := newSignal(d.Type(), d.Name(), "no return variance", 0, 0, 0, params, at)
		return sig, fmt.Errorf("%w: zero return variance", models.ErrDegenerateInput)
	}

	t, _ := UnitRootStat(s.Closes)
	hl := HalfLife(s.Returns)
	expl := 0.0
	if !math.IsInf(hl, 1) {
		expl = 1 / (1 + hl/10)
	}
	params := map[string]models.ParamValue{
		"tStat":    models.Num(t),
		"halfLife": models.Num(hl),
	}
	desc := fmt.Sprintf("unit-root t %.2f, half-life %s bars", t, formatHalfLife(hl))
	return newSignal(d.Type(), d.Name(), desc, -t/4, expl, math.Abs(t), params, at), nil
}

func formatHalfLife(hl float64) string {
	if math.IsInf(hl, 1) {
		return models.EnumInfinite
	}
	return fmt.Sprintf("%.1f", hl)
}

var _ domsvc.PatternDetector = (*MeanReversionDetector)(nil)
