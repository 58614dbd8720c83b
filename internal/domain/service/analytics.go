package service

import (
	"context"

	"PatternScope/internal/domain/models"
)

// PatternDetector computes one kind of signal from a series.
// Implementations are pure: same series, same signal.
type PatternDetector interface {
	Type() models.PatternType
	Name() string
	Detect(s *models.Series) (models.PatternSignal, error)
}

// Narrator turns a finished report into prose. It never feeds back into scores.
type Narrator interface {
	Summarize(ctx context.Context, report *models.PatternReport) (string, error)
}
