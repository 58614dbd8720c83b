package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	"PatternScope/internal/services/features"
	pkgch "PatternScope/pkg/clickhouse"
	applogger "PatternScope/pkg/logger"
)

// SamplesSchema creates the OHLCV table read by CHMarketData.
const SamplesSchema = `
CREATE TABLE IF NOT EXISTS %s (
    symbol LowCardinality(String),
    tf     LowCardinality(String),
    ts     DateTime64(3, 'UTC'),
    open   Float64,
    high   Float64,
    low    Float64,
    close  Float64,
    volume Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, tf, ts)`

// CHMarketData implements MarketDataProvider backed by ClickHouse.
type CHMarketData struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHMarketData(ch *pkgch.Client, table string, l *applogger.Logger) *CHMarketData {
	return newCHMarketData(ch.DB(), table, l)
}

func newCHMarketData(db *sql.DB, table string, l *applogger.Logger) *CHMarketData {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHMarketData{db: db, table: table, l: l, now: time.Now}
}

// Init creates the samples table if it does not exist.
func (s *CHMarketData) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(SamplesSchema, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// GetSamples returns the last spec.N samples ending at spec.To, oldest first.
func (s *CHMarketData) GetSamples(ctx context.Context, symbol string, spec domrepo.WindowSpec) ([]models.MarketSample, error) {
	start := time.Now()
	tf := string(spec.Timeframe)
	to := spec.To
	if to.IsZero() {
		to = s.now()
	}
	to = features.AlignTo(to.UTC(), tf).Add(features.Duration(tf))

	// FINAL collapses rows of the same ts that ReplacingMergeTree has not merged yet.
	const qtpl = `
        SELECT ts, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ? AND ts < ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, tf, to, spec.N)
	if err != nil {
		s.l.Error("clickhouse get_samples query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.String("tf", tf),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: query samples: %v", models.ErrDataUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.MarketSample, 0, spec.N)
	for rows.Next() {
		var m models.MarketSample
		if err := rows.Scan(&m.Timestamp, &m.Symbol, &m.Open, &m.High, &m.Low, &m.Close, &m.Volume); err != nil {
			s.l.Error("clickhouse get_samples scan error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("%w: scan sample: %v", models.ErrDataUnavailable, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", models.ErrDataUnavailable, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no samples for %s/%s", models.ErrDataUnavailable, symbol, tf)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Debug("clickhouse get_samples ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", tf),
		applogger.Int("rows", len(out)),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
