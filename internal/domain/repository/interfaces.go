package repository

import (
	"context"

	"PatternScope/internal/domain/models"
)

// HistoryStore is an append-only log of completed analyses.
type HistoryStore interface {
	Append(ctx context.Context, entry models.PatternHistoryEntry) error
	// QueryTrend returns entries for symbol from the last days, oldest first.
	QueryTrend(ctx context.Context, symbol string, days int) ([]models.PatternHistoryEntry, error)
}

// ReportPublisher fans a finished report out to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, report *models.PatternReport) error
}

type Metrics interface {
	RecordAnalysis(symbol, outcome string)
	RecordDetectorError(detector string)
	RecordSignal(patternType string, confidence float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
