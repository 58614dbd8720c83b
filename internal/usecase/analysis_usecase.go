package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	domsvc "PatternScope/internal/domain/service"
	applogger "PatternScope/pkg/logger"
)

// AnalysisUseCase fetches a window, runs the engine and optionally adds prose.
type AnalysisUseCase struct {
	provider     domrepo.MarketDataProvider
	engine       *PatternEngine
	narrator     domsvc.Narrator
	history      domrepo.HistoryStore
	metrics      domrepo.Metrics
	l            *applogger.Logger
	fetchTimeout time.Duration
	defaultN     int
}

// UseCaseOption customises an AnalysisUseCase.
type UseCaseOption func(*AnalysisUseCase)

// WithDefaultSamples sets the window size used when a request leaves n unset.
func WithDefaultSamples(n int) UseCaseOption {
	return func(uc *AnalysisUseCase) {
		if n >= models.MinSamples {
			uc.defaultN = n
		}
	}
}

func NewAnalysisUseCase(
	provider domrepo.MarketDataProvider,
	engine *PatternEngine,
	narrator domsvc.Narrator,
	history domrepo.HistoryStore,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	fetchTimeout time.Duration,
	opts ...UseCaseOption,
) *AnalysisUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	uc := &AnalysisUseCase{
		provider:     provider,
		engine:       engine,
		narrator:     narrator,
		history:      history,
		metrics:      metrics,
		l:            l,
		fetchTimeout: fetchTimeout,
		defaultN:     500,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Analyze runs one analysis. ErrDataUnavailable and ErrInsufficientData are
// returned before any detector runs.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	symbol := normalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	n := req.N
	if n <= 0 {
		n = uc.defaultN
	}

	samples, err := uc.fetch(ctx, symbol, domrepo.WindowSpec{N: n, Timeframe: tf})
	if err != nil {
		uc.metrics.RecordAnalysis(symbol, "data_unavailable")
		uc.metrics.RecordError("fetch")
		uc.l.Error("market data fetch failed",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, err
	}

	w, err := models.NewAnalysisWindow(symbol, string(tf), samples)
	if err != nil {
		outcome := "invalid_window"
		if errors.Is(err, models.ErrInsufficientData) {
			outcome = "insufficient_data"
		}
		uc.metrics.RecordAnalysis(symbol, outcome)
		uc.l.Error("analysis window rejected",
			applogger.String("symbol", symbol),
			applogger.Int("samples", len(samples)),
			applogger.Error(err),
		)
		return nil, err
	}

	report, err := uc.engine.Analyze(ctx, w)
	if err != nil {
		uc.metrics.RecordAnalysis(symbol, "failed")
		return nil, err
	}

	res := &models.AnalysisResult{Report: report}
	if req.Narrative && uc.narrator != nil {
		text, err := uc.narrator.Summarize(ctx, report)
		if err != nil {
			uc.metrics.RecordError("narrative")
			uc.l.Warn("narrative omitted",
				applogger.String("symbol", symbol),
				applogger.String("report_id", report.ID),
				applogger.Error(err),
			)
		} else {
			res.Narrative = text
		}
	}
	return res, nil
}

// fetch bounds only the provider call; the math that follows is not cancelled.
func (uc *AnalysisUseCase) fetch(ctx context.Context, symbol string, spec domrepo.WindowSpec) ([]models.MarketSample, error) {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, uc.fetchTimeout)
	defer cancel()

	samples, err := uc.provider.GetSamples(fctx, symbol, spec)
	uc.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrDataUnavailable, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples for %s", models.ErrDataUnavailable, symbol)
	}
	return samples, nil
}

// Trend returns the symbol's history for the last req.Days days, oldest first.
func (uc *AnalysisUseCase) Trend(ctx context.Context, req models.TrendRequest) ([]models.PatternHistoryEntry, error) {
	symbol := normalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	days := req.Days
	if days <= 0 {
		days = 30
	}
	out, err := uc.history.QueryTrend(ctx, symbol, days)
	if err != nil {
		uc.metrics.RecordError("history_query")
		return nil, fmt.Errorf("query trend: %w", err)
	}
	return out, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
