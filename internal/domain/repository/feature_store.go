package repository

import (
	"context"
	"time"

	"PatternScope/internal/domain/models"
)

// Timeframe represents sample resolution buckets.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

// WindowSpec selects the last N samples of a timeframe ending at To (zero To means now).
type WindowSpec struct {
	N         int
	Timeframe Timeframe
	To        time.Time
}

// MarketDataProvider supplies ordered OHLCV samples for analysis.
// Failures are wrapped around models.ErrDataUnavailable.
type MarketDataProvider interface {
	GetSamples(ctx context.Context, symbol string, spec WindowSpec) ([]models.MarketSample, error)
}
