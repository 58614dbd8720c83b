package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	pkgch "PatternScope/pkg/clickhouse"
	applogger "PatternScope/pkg/logger"
)

// HistorySchema creates the table written by CHHistory.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS %s (
    symbol          LowCardinality(String),
    patterns_found  UInt32,
    high_confidence UInt32,
    ts              DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (symbol, ts)`

// DefaultHistoryTable is the table CHHistory writes to.
const DefaultHistoryTable = "pattern_history"

// CHHistory stores history entries in ClickHouse. Rows are only ever inserted.
type CHHistory struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHHistory(ch *pkgch.Client, l *applogger.Logger) *CHHistory {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHHistory{db: ch.DB(), table: DefaultHistoryTable, l: l, now: time.Now}
}

func (s *CHHistory) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(HistorySchema, s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *CHHistory) Append(ctx context.Context, e models.PatternHistoryEntry) error {
	q := fmt.Sprintf("INSERT INTO %s (symbol, patterns_found, high_confidence, ts) VALUES (?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		e.Symbol,
		uint32(e.PatternsFound),
		uint32(e.HighConfidenceCount),
		e.Timestamp.UTC(),
	)
	if err != nil {
		s.l.Error("clickhouse history insert error",
			applogger.String("symbol", e.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *CHHistory) QueryTrend(ctx context.Context, symbol string, days int) ([]models.PatternHistoryEntry, error) {
	q := fmt.Sprintf("SELECT symbol, patterns_found, high_confidence, ts FROM %s WHERE symbol = ? AND ts >= ? ORDER BY ts ASC", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, trendStart(s.now(), days))
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()

	out := make([]models.PatternHistoryEntry, 0, 64)
	for rows.Next() {
		var (
			e           models.PatternHistoryEntry
			found, high uint32
		)
		if err := rows.Scan(&e.Symbol, &found, &high, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.PatternsFound = int(found)
		e.HighConfidenceCount = int(high)
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ domrepo.HistoryStore = (*CHHistory)(nil)
