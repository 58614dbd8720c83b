package analytics

import (
	"fmt"
	"math"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/features"
)

const anomalySigma = 3.0

// AnomalyStats counts returns beyond three standard deviations.
// Outliers are measured from the mean, jumps from zero.
type AnomalyStats struct {
	Total    int
	Outliers int
	Jumps    int
	MaxZ     float64
}

func CountAnomalies(returns []float64) (AnomalyStats, bool) {
	sd, ok := features.StdDev(returns)
	if !ok {
		return AnomalyStats{Total: len(returns)}, false
	}
	m := features.Mean(returns)
	st := AnomalyStats{Total: len(returns)}
	for _, r := range returns {
		z := math.Abs(r-m) / sd
		if z > anomalySigma {
			st.Outliers++
		}
		if math.Abs(r) > anomalySigma*sd {
			st.Jumps++
		}
		st.MaxZ = math.Max(st.MaxZ, z)
	}
	return st, true
}

type AnomalyDetector struct{}

func NewAnomalyDetector() *AnomalyDetector { return &AnomalyDetector{} }

func (d *AnomalyDetector) Type() models.PatternType { return models.PatternAnomaly }
func (d *AnomalyDetector) Name() string             { return "sigma_outliers" }

func (d *AnomalyDetector) Detect(s *models.Series) (models.PatternSignal, error) {
	at := detectedAt(s)
	st, ok := CountAnomalies(s.Returns)
	if !ok {
		params := map[string]models.ParamValue{"outliers": models.Num(0), "jumps": models.Num(0)}
		sig := newSignal(d.Type(), d.Name(), "no return variance", 0, 0, 0, params, at)
		return sig, fmt.Errorf("%w: zero return variance", models.ErrDegenerateInput)
	}
	total := float64(st.Total)
	score := float64(st.Outliers) / total
	params := map[string]models.ParamValue{
		"outliers":       models.Num(float64(st.Outliers)),
		"jumps":          models.Num(float64(st.Jumps)),
		"total":          models.Num(total),
		"anomalyScore":   models.Num(score),
		"maxZ":           models.Num(st.MaxZ),
		"sigmaThreshold": models.Num(anomalySigma),
	}
	desc := fmt.Sprintf("%d outliers and %d jumps beyond %.0f sigma in %d returns", st.Outliers, st.Jumps, anomalySigma, st.Total)
	return newSignal(d.Type(), d.Name(), desc, score/0.05, float64(st.Jumps)/total*10, st.MaxZ, params, at), nil
}

var _ domsvc.PatternDetector = (*AnomalyDetector)(nil)
