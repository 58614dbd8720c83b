package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PatternScope/internal/domain/models"
	icache "PatternScope/internal/service/cache"
	xlogger "PatternScope/pkg/logger"
)

type stubService struct {
	calls  atomic.Int32
	err    error
	last   models.AnalyzeRequest
	trend  []models.PatternHistoryEntry
	trendR models.TrendRequest
}

func (s *stubService) Analyze(_ context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error) {
	s.calls.Add(1)
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.AnalysisResult{Report: &models.PatternReport{ID: "r-1", Symbol: req.Symbol}}, nil
}

func (s *stubService) Trend(_ context.Context, req models.TrendRequest) ([]models.PatternHistoryEntry, error) {
	s.trendR = req
	return s.trend, s.err
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newEcho(h *PatternsEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestAnalyzeSuccessAppliesDefaults(t *testing.T) {
	svc := &stubService{}
	e := newEcho(NewPatternsEchoHandler(xlogger.Nop(), svc, nil, nil, PatternsConfig{}))

	rec, env := do(t, e, "/api/patterns/analyze?symbol=AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)

	var res models.AnalysisResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "r-1", res.Report.ID)
	assert.Zero(t, svc.last.N, "window size defaults in the use case")
	assert.Equal(t, "1d", svc.last.TF)
	assert.False(t, svc.last.Narrative)
}

func TestAnalyzeValidation(t *testing.T) {
	svc := &stubService{}
	e := newEcho(NewPatternsEchoHandler(xlogger.Nop(), svc, nil, nil, PatternsConfig{}))

	for _, target := range []string{
		"/api/patterns/analyze",
		"/api/patterns/analyze?symbol=AAPL&n=10",
		"/api/patterns/analyze?symbol=AAPL&tf=2h",
	} {
		t.Run(target, func(t *testing.T) {
			rec, env := do(t, e, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, http.StatusBadRequest, env.Status)
		})
	}
	assert.Zero(t, svc.calls.Load())
}

func TestAnalyzeErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("window: %w", models.ErrInsufficientData), http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{fmt.Errorf("%w: not strictly ordered at index 60", models.ErrInvalidSample), http.StatusUnprocessableEntity, "ERR_INVALID_SAMPLE"},
		{fmt.Errorf("%w: timeout", models.ErrDataUnavailable), http.StatusServiceUnavailable, "ERR_DATA_UNAVAILABLE"},
		{errors.New("unexpected"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &stubService{err: tc.err}
			e := newEcho(NewPatternsEchoHandler(xlogger.Nop(), svc, nil, nil, PatternsConfig{}))

			rec, env := do(t, e, "/api/patterns/analyze?symbol=AAPL")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, env.Status)
			if tc.code != "" {
				var errs []struct {
					Code string `json:"code"`
				}
				require.NoError(t, json.Unmarshal(env.Data, &errs))
				require.Len(t, errs, 1)
				assert.Equal(t, tc.code, errs[0].Code)
			}
		})
	}
}

func TestAnalyzeCachesReports(t *testing.T) {
	svc := &stubService{}
	h := NewPatternsEchoHandler(xlogger.Nop(), svc, nil, icache.NewTTLCache(), PatternsConfig{CacheTTL: time.Minute})
	e := newEcho(h)

	_, first := do(t, e, "/api/patterns/analyze?symbol=AAPL&n=100")
	_, second := do(t, e, "/api/patterns/analyze?symbol=aapl&n=100")
	_, other := do(t, e, "/api/patterns/analyze?symbol=AAPL&n=200")

	assert.Equal(t, int32(2), svc.calls.Load())
	assert.JSONEq(t, string(first.Data), string(second.Data))
	assert.Equal(t, http.StatusOK, other.Status)
}

func TestAnalyzeRateLimited(t *testing.T) {
	svc := &stubService{}
	e := newEcho(NewPatternsEchoHandler(xlogger.Nop(), svc, nil, nil, PatternsConfig{RateCapacity: 1, RateRefill: 0}))

	rec, _ := do(t, e, "/api/patterns/analyze?symbol=AAPL")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, e, "/api/patterns/analyze?symbol=AAPL")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")
	assert.Equal(t, int32(1), svc.calls.Load())
}

func TestTrend(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubService{trend: []models.PatternHistoryEntry{{Symbol: "AAPL", PatternsFound: 4, HighConfidenceCount: 1, Timestamp: ts}}}
	e := newEcho(NewPatternsEchoHandler(xlogger.Nop(), svc, nil, nil, PatternsConfig{}))

	rec, env := do(t, e, "/api/patterns/trend?symbol=AAPL&days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, svc.trendR.Days)

	var got []models.PatternHistoryEntry
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].PatternsFound)

	rec, _ = do(t, e, "/api/patterns/trend?symbol=AAPL&days=400")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
