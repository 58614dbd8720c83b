package analytics

import (
	"sort"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
)

// Rank returns a copy of signals ordered by descending score.
// Equal scores keep their input order.
func Rank(signals []models.PatternSignal) []models.PatternSignal {
	out := make([]models.PatternSignal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out
}

// DefaultDetectors lists every detector in emission order.
func DefaultDetectors() []domsvc.PatternDetector {
	return []domsvc.PatternDetector{
		NewMeanReversionDetector(),
		NewMomentumDetector(),
		NewHurstDetector(),
		NewSeasonalityDetector(),
		NewVolatilityDetector(),
		NewRegimeDetector(),
		NewAnomalyDetector(),
		NewMicrostructureDetector(),
	}
}
