package analytics

import (
	"time"

	"PatternScope/internal/domain/models"
	"PatternScope/internal/services/features"
)

// newSignal fills the common fields and clamps the bounded scores.
func newSignal(t models.PatternType, name, desc string, conf, expl, strength float64, params map[string]models.ParamValue, at time.Time) models.PatternSignal {
	return models.PatternSignal{
		Type:           t,
		Name:           name,
		Description:    desc,
		Confidence:     features.Clamp01(conf),
		Exploitability: features.Clamp01(expl),
		Strength:       strength,
		Parameters:     params,
		DetectedAt:     at,
	}
}

// detectedAt is the timestamp of the last sample, so signals stay reproducible.
func detectedAt(s *models.Series) time.Time {
	if len(s.Times) == 0 {
		return time.Time{}
	}
	return s.Times[len(s.Times)-1]
}
