package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/services/analytics"
	"PatternScope/internal/services/features"
	applogger "PatternScope/pkg/logger"
)

// PatternEngine runs every detector over one window and assembles the report.
type PatternEngine struct {
	detectors []domsvc.PatternDetector
	history   domrepo.HistoryStore
	publisher domrepo.ReportPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger

	now   func() time.Time
	newID func() string
}

type EngineOption func(*PatternEngine)

// WithDetectors replaces the default detector set. Order is emission order.
func WithDetectors(ds ...domsvc.PatternDetector) EngineOption {
	return func(e *PatternEngine) { e.detectors = ds }
}

// WithPublisher sets where finished reports are delivered.
func WithPublisher(p domrepo.ReportPublisher) EngineOption {
	return func(e *PatternEngine) { e.publisher = p }
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *PatternEngine) { e.now = now }
}

func NewPatternEngine(history domrepo.HistoryStore, metrics domrepo.Metrics, l *applogger.Logger, opts ...EngineOption) *PatternEngine {
	if l == nil {
		l = applogger.Nop()
	}
	e := &PatternEngine{
		detectors: analytics.DefaultDetectors(),
		history:   history,
		metrics:   metrics,
		l:         l,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type detectorResult struct {
	signal models.PatternSignal
	err    error
	ok     bool
}

// Analyze produces a report for w. History and publish failures are logged
// and never change the returned report.
func (e *PatternEngine) Analyze(ctx context.Context, w *models.AnalysisWindow) (*models.PatternReport, error) {
	start := time.Now()
	series, err := features.BuildSeries(w)
	if err != nil {
		return nil, fmt.Errorf("build series: %w", err)
	}

	results := e.runDetectors(series)

	signals := make([]models.PatternSignal, 0, len(results))
	detectorErrors := map[string]string{}
	for i, res := range results {
		d := e.detectors[i]
		switch {
		case res.err == nil:
			signals = append(signals, res.signal)
		case errors.Is(res.err, models.ErrDegenerateInput) && res.ok:
			e.l.Debug("detector degenerate input",
				applogger.String("symbol", w.Symbol()),
				applogger.String("detector", d.Name()),
				applogger.Error(res.err),
			)
			signals = append(signals, res.signal)
		default:
			e.l.Warn("detector failed",
				applogger.String("symbol", w.Symbol()),
				applogger.String("detector", d.Name()),
				applogger.Error(res.err),
			)
			detectorErrors[d.Name()] = res.err.Error()
			e.metrics.RecordDetectorError(d.Name())
		}
	}
	if len(detectorErrors) == 0 {
		detectorErrors = nil
	}

	ranked := analytics.Rank(signals)
	report := &models.PatternReport{
		ID:             e.newID(),
		Symbol:         w.Symbol(),
		Window:         w.Info(),
		GeneratedAt:    e.now().UTC(),
		Signals:        ranked,
		RiskMetrics:    analytics.ComputeRisk(series, ranked),
		RegimeSegments: analytics.Segments(analytics.SegmentRegimes(series.Returns)),
		DetectorErrors: detectorErrors,
	}

	for _, s := range ranked {
		e.metrics.RecordSignal(string(s.Type), s.Confidence)
	}
	e.metrics.RecordAnalysis(report.Symbol, "ok")
	e.metrics.RecordLatency("analyze", time.Since(start).Seconds())

	e.deliver(ctx, report)

	e.l.Info("analysis complete",
		applogger.String("symbol", report.Symbol),
		applogger.String("report_id", report.ID),
		applogger.Int("signals", len(report.Signals)),
		applogger.Int("detector_errors", len(report.DetectorErrors)),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// runDetectors runs one goroutine per detector. results[i] belongs to detectors[i].
func (e *PatternEngine) runDetectors(s *models.Series) []detectorResult {
	results := make([]detectorResult, len(e.detectors))
	var wg sync.WaitGroup
	for i, d := range e.detectors {
		wg.Add(1)
		go func(i int, d domsvc.PatternDetector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = detectorResult{err: fmt.Errorf("detector panic: %v", r)}
				}
			}()
			sig, err := d.Detect(s)
			results[i] = detectorResult{signal: sig, err: err, ok: true}
		}(i, d)
	}
	wg.Wait()
	return results
}

func (e *PatternEngine) deliver(ctx context.Context, report *models.PatternReport) {
	if e.history != nil {
		if err := e.history.Append(ctx, report.HistoryEntry()); err != nil {
			e.metrics.RecordError("history_append")
			e.l.Error("history append failed",
				applogger.String("symbol", report.Symbol),
				applogger.Error(err),
			)
		}
	}
	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, report); err != nil {
			e.metrics.RecordError("report_publish")
			e.l.Error("report publish failed",
				applogger.String("symbol", report.Symbol),
				applogger.String("report_id", report.ID),
				applogger.Error(err),
			)
		}
	}
}
