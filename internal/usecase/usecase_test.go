package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/internal/repository"
	"PatternScope/internal/services/analytics"
	"PatternScope/internal/testutil/marketgen"
	pkgkafka "PatternScope/pkg/kafka"
	applogger "PatternScope/pkg/logger"
)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) GetSamples(ctx context.Context, symbol string, spec domrepo.WindowSpec) ([]models.MarketSample, error) {
	args := m.Called(ctx, symbol, spec)
	s, _ := args.Get(0).([]models.MarketSample)
	return s, args.Error(1)
}

type mockNarrator struct{ mock.Mock }

func (m *mockNarrator) Summarize(ctx context.Context, r *models.PatternReport) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(string, string) {}
func (nopMetrics) RecordDetectorError(string)    {}
func (nopMetrics) RecordSignal(string, float64)  {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

type capturePublisher struct {
	mu      sync.Mutex
	reports []*models.PatternReport
}

func (c *capturePublisher) Publish(_ context.Context, r *models.PatternReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return nil
}

// countingDetector counts calls and returns a fixed outcome.
type countingDetector struct {
	name  string
	calls atomic.Int32
	sig   models.PatternSignal
	err   error
	panic bool
}

func (d *countingDetector) Type() models.PatternType { return models.PatternAnomaly }
func (d *countingDetector) Name() string             { return d.name }
func (d *countingDetector) Detect(*models.Series) (models.PatternSignal, error) {
	d.calls.Add(1)
	if d.panic {
		panic("boom")
	}
	return d.sig, d.err
}

var fixedNow = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

func walkSamples(n int) []models.MarketSample {
	return marketgen.Samples("AAPL", marketgen.Walk(42, n, 0, 0.01))
}

func TestAnalyzeInsufficientDataRunsNoDetector(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "AAPL", mock.Anything).Return(walkSamples(30), nil)

	det := &countingDetector{name: "probe"}
	engine := NewPatternEngine(repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), WithDetectors(det))
	uc := NewAnalysisUseCase(prov, engine, nil, repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), time.Second)

	_, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "aapl", N: 30, TF: "1d"})
	require.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Zero(t, det.calls.Load())
	prov.AssertExpectations(t)
}

func TestAnalyzeRejectsInvalidSamples(t *testing.T) {
	nanClose := walkSamples(120)
	nanClose[60].Close = math.NaN()
	dupTime := walkSamples(120)
	dupTime[60].Timestamp = dupTime[59].Timestamp

	for name, samples := range map[string][]models.MarketSample{"nan close": nanClose, "duplicate timestamp": dupTime} {
		t.Run(name, func(t *testing.T) {
			prov := &mockProvider{}
			prov.On("GetSamples", mock.Anything, "AAPL", mock.Anything).Return(samples, nil)

			history := repository.NewMemoryHistory()
			pub := &capturePublisher{}
			det := &countingDetector{name: "counter"}
			engine := NewPatternEngine(history, nopMetrics{}, applogger.Nop(), WithDetectors(det), WithPublisher(pub))
			uc := NewAnalysisUseCase(prov, engine, nil, history, nopMetrics{}, applogger.Nop(), time.Second)

			res, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", N: 120, TF: "1d"})
			require.ErrorIs(t, err, models.ErrInvalidSample)
			assert.Nil(t, res)
			assert.Zero(t, det.calls.Load())
			assert.Empty(t, pub.reports)

			trend, err := history.QueryTrend(context.Background(), "AAPL", 36500)
			require.NoError(t, err)
			assert.Empty(t, trend)
		})
	}
}

func TestAnalyzeUsesConfiguredDefaultSamples(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "AAPL", domrepo.WindowSpec{N: 120, Timeframe: domrepo.TF1d}).
		Return(walkSamples(120), nil)

	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop())
	uc := NewAnalysisUseCase(prov, engine, nil, repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), time.Second,
		WithDefaultSamples(120),
	)

	res, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", TF: "1d"})
	require.NoError(t, err)
	assert.Equal(t, 120, res.Report.Window.SampleCount)
	prov.AssertExpectations(t)
}

func TestAnalyzeProviderFailure(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "AAPL", mock.Anything).Return(nil, errors.New("connection refused"))

	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop())
	uc := NewAnalysisUseCase(prov, engine, nil, repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), time.Second)

	_, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", N: 200, TF: "1d"})
	require.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAnalyzeFetchIsBoundedByTimeout(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "AAPL", mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, ok := ctx.Deadline()
			assert.True(t, ok, "fetch context carries a deadline")
		}).
		Return(walkSamples(120), nil)

	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop())
	uc := NewAnalysisUseCase(prov, engine, nil, repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), 50*time.Millisecond)

	_, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", N: 120, TF: "1d"})
	require.NoError(t, err)
}

func TestAnalyzeFullReport(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "AAPL", domrepo.WindowSpec{N: 200, Timeframe: domrepo.TF1d}).
		Return(walkSamples(200), nil)
	narr := &mockNarrator{}
	narr.On("Summarize", mock.Anything, mock.Anything).Return("calm market", nil)

	history := repository.NewMemoryHistory()
	pub := &capturePublisher{}
	engine := NewPatternEngine(history, nopMetrics{}, applogger.Nop(), WithPublisher(pub), WithClock(func() time.Time { return time.Now() }))
	uc := NewAnalysisUseCase(prov, engine, narr, history, nopMetrics{}, applogger.Nop(), time.Second)

	res, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", N: 200, TF: "1d", Narrative: true})
	require.NoError(t, err)
	r := res.Report

	assert.Equal(t, "calm market", res.Narrative)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "AAPL", r.Symbol)
	assert.Equal(t, 200, r.Window.SampleCount)
	assert.Len(t, r.Signals, len(analytics.DefaultDetectors()))
	assert.Nil(t, r.DetectorErrors)
	for i := 1; i < len(r.Signals); i++ {
		assert.GreaterOrEqual(t, r.Signals[i-1].Score(), r.Signals[i].Score())
	}
	for _, s := range r.Signals {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}

	require.Len(t, pub.reports, 1)
	assert.Same(t, r, pub.reports[0])

	trend, err := uc.Trend(context.Background(), models.TrendRequest{Symbol: "aapl", Days: 1})
	require.NoError(t, err)
	require.Len(t, trend, 1)
	assert.Equal(t, len(r.Signals), trend[0].PatternsFound)
}

func TestAnalyzeNarrativeFailureKeepsReport(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "AAPL", mock.Anything).Return(walkSamples(150), nil)
	narr := &mockNarrator{}
	narr.On("Summarize", mock.Anything, mock.Anything).Return("", models.ErrNarrativeUnavailable)

	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop())
	uc := NewAnalysisUseCase(prov, engine, narr, repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), time.Second)

	res, err := uc.Analyze(context.Background(), models.AnalyzeRequest{Symbol: "AAPL", N: 150, TF: "1d", Narrative: true})
	require.NoError(t, err)
	assert.Empty(t, res.Narrative)
	assert.NotEmpty(t, res.Report.Signals)
	narr.AssertNumberOfCalls(t, "Summarize", 1)
}

func TestEngineIsolatesDetectorFailures(t *testing.T) {
	good := &countingDetector{name: "good", sig: models.PatternSignal{Name: "good", Confidence: 0.5, Exploitability: 0.5, Strength: 1}}
	degenerate := &countingDetector{name: "flat", sig: models.PatternSignal{Name: "flat"}, err: models.ErrDegenerateInput}
	failing := &countingDetector{name: "failing", err: errors.New("bad math")}
	panicking := &countingDetector{name: "panicking", panic: true}

	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop(), WithDetectors(good, degenerate, failing, panicking))
	w, err := models.NewAnalysisWindow("AAPL", "1d", walkSamples(100))
	require.NoError(t, err)

	r, err := engine.Analyze(context.Background(), w)
	require.NoError(t, err)

	require.Len(t, r.Signals, 2)
	assert.Equal(t, "good", r.Signals[0].Name)
	assert.Equal(t, "flat", r.Signals[1].Name)
	require.Len(t, r.DetectorErrors, 2)
	assert.Contains(t, r.DetectorErrors["failing"], "bad math")
	assert.Contains(t, r.DetectorErrors["panicking"], "boom")
	assert.NotContains(t, r.DetectorErrors, "flat")
}

func TestEngineDeterministicScores(t *testing.T) {
	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop(), WithClock(func() time.Time { return fixedNow }))
	w, err := models.NewAnalysisWindow("AAPL", "1d", walkSamples(250))
	require.NoError(t, err)

	a, err := engine.Analyze(context.Background(), w)
	require.NoError(t, err)
	b, err := engine.Analyze(context.Background(), w)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, fixedNow, a.GeneratedAt)
	assert.Equal(t, a.Signals, b.Signals)
	assert.Equal(t, a.RiskMetrics, b.RiskMetrics)
	assert.Equal(t, a.RegimeSegments, b.RegimeSegments)
}

func TestEngineHistoryFailureDoesNotAlterReport(t *testing.T) {
	engine := NewPatternEngine(failingHistory{}, nopMetrics{}, applogger.Nop())
	w, err := models.NewAnalysisWindow("AAPL", "1d", walkSamples(100))
	require.NoError(t, err)

	r, err := engine.Analyze(context.Background(), w)
	require.NoError(t, err)
	assert.NotEmpty(t, r.Signals)
}

type failingHistory struct{}

func (failingHistory) Append(context.Context, models.PatternHistoryEntry) error {
	return errors.New("disk full")
}

func (failingHistory) QueryTrend(context.Context, string, int) ([]models.PatternHistoryEntry, error) {
	return nil, errors.New("disk full")
}

func TestAnalysisRequestHandler(t *testing.T) {
	prov := &mockProvider{}
	prov.On("GetSamples", mock.Anything, "MSFT", domrepo.WindowSpec{N: 500, Timeframe: domrepo.TF1d}).Return(marketgen.Samples("MSFT", marketgen.Walk(7, 500, 0, 0.01)), nil)
	prov.On("GetSamples", mock.Anything, "TINY", mock.Anything).Return(walkSamples(20), nil)
	unordered := marketgen.Samples("DUPE", marketgen.Walk(3, 100, 0, 0.01))
	unordered[40].Timestamp = unordered[39].Timestamp
	prov.On("GetSamples", mock.Anything, "DUPE", mock.Anything).Return(unordered, nil)

	pub := &capturePublisher{}
	engine := NewPatternEngine(nil, nopMetrics{}, applogger.Nop(), WithPublisher(pub))
	uc := NewAnalysisUseCase(prov, engine, nil, repository.NewMemoryHistory(), nopMetrics{}, applogger.Nop(), time.Second)
	h := NewAnalysisRequestHandler("analysis-requests", uc, nopMetrics{}, applogger.Nop())
	ctx := context.Background()

	assert.Equal(t, "analysis-requests", h.Topic())

	var perm *pkgkafka.PermanentError
	err := h.Handle(ctx, []byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &perm))

	err = h.Handle(ctx, []byte(`{"symbol":"MSFT","tf":"2h"}`))
	require.Error(t, err)
	assert.True(t, errors.As(err, &perm))

	req, _ := json.Marshal(map[string]string{"symbol": "MSFT"})
	require.NoError(t, h.Handle(ctx, req))
	require.Len(t, pub.reports, 1)
	assert.Equal(t, "MSFT", pub.reports[0].Symbol)

	require.NoError(t, h.Handle(ctx, []byte(`{"symbol":"TINY","n":50}`)))
	assert.Len(t, pub.reports, 1)

	err = h.Handle(ctx, []byte(`{"symbol":"DUPE","n":100}`))
	require.Error(t, err)
	assert.True(t, errors.As(err, &perm))
	assert.ErrorIs(t, err, models.ErrInvalidSample)
	assert.Len(t, pub.reports, 1)
}

var _ domsvc.Narrator = (*mockNarrator)(nil)
