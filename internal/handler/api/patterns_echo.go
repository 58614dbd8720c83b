package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"PatternScope/internal/domain/models"
	icache "PatternScope/internal/service/cache"
	"PatternScope/internal/service/metrics"
	"PatternScope/internal/service/ratelimit"
	xhttp "PatternScope/pkg/http"
	xlogger "PatternScope/pkg/logger"
)

// PatternService is the use case behind the pattern endpoints.
type PatternService interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalysisResult, error)
	Trend(ctx context.Context, req models.TrendRequest) ([]models.PatternHistoryEntry, error)
}

// ReportStream serves the live report WebSocket.
type ReportStream interface {
	Serve(w http.ResponseWriter, r *http.Request) error
}

// PatternsConfig tunes caching and rate limiting of /api/patterns/analyze.
type PatternsConfig struct {
	CacheTTL     time.Duration
	RateCapacity float64
	RateRefill   float64
}

const (
	sweepEvery = 1024
	bucketIdle = 10 * time.Minute
)

// PatternsEchoHandler exposes pattern analysis over Echo.
type PatternsEchoHandler struct {
	logger *xlogger.Logger
	svc    PatternService
	stream ReportStream
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
	reqs   atomic.Uint64
	cfg    PatternsConfig
}

func NewPatternsEchoHandler(logger *xlogger.Logger, svc PatternService, stream ReportStream, cache icache.BytesCache, cfg PatternsConfig) *PatternsEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PatternsEchoHandler{
		logger: logger,
		svc:    svc,
		stream: stream,
		cache:  cache,
		rl:     ratelimit.New(),
		cfg:    cfg,
	}
}

func (h *PatternsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/patterns")
	g.GET("/analyze", h.Analyze)
	g.GET("/trend", h.Trend)
	if h.stream != nil {
		e.GET("/ws/reports", h.Stream)
	}
}

func (h *PatternsEchoHandler) Analyze(c echo.Context) error {
	const endpoint = "analyze"
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.reqs.Add(1)%sweepEvery == 0 {
		h.rl.Sweep(bucketIdle)
	}
	if !h.rl.Allow(c.RealIP()+":"+endpoint, h.cfg.RateCapacity, h.cfg.RateRefill) {
		h.logger.Warn("patterns.analyze rate_limited", xlogger.String("remote", c.RealIP()))
		return h.fail(c, endpoint, xhttp.TooManyRequestsError("too many analysis requests"))
	}

	ctx := c.Request().Context()
	key := cacheKey(req)
	if b, ok := h.cacheGet(ctx, key); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	res, err := h.svc.Analyze(ctx, *req)
	if err != nil {
		h.logger.Error("patterns.analyze error",
			xlogger.String("symbol", req.Symbol),
			xlogger.Error(err),
		)
		return h.fail(c, endpoint, toAppError(err))
	}

	if b, err := json.Marshal(res); err == nil {
		h.cacheSet(ctx, key, b)
	} else {
		h.logger.Warn("patterns.analyze marshal_error", xlogger.Error(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PatternsEchoHandler) Trend(c echo.Context) error {
	const endpoint = "trend"
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	entries, err := h.svc.Trend(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("patterns.trend error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return h.fail(c, endpoint, toAppError(err))
	}
	return xhttp.SuccessResponse(c, entries)
}

func (h *PatternsEchoHandler) Stream(c echo.Context) error {
	if err := h.stream.Serve(c.Response(), c.Request()); err != nil {
		h.logger.Warn("patterns.stream upgrade_error", xlogger.Error(err))
		return nil
	}
	return nil
}

func (h *PatternsEchoHandler) fail(c echo.Context, endpoint string, appErr *xhttp.AppError) error {
	code := "ERR_INTERNAL"
	if appErr != nil {
		code = appErr.Code
	}
	metrics.APIErrors.WithLabelValues(endpoint, code).Inc()
	if appErr == nil {
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain errors to transport errors; nil means an internal error.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough samples to analyse").WithError(err)
	case errors.Is(err, models.ErrInvalidSample):
		return xhttp.UnprocessableError("ERR_INVALID_SAMPLE", "market data failed validation").WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.ServiceUnavailableError("ERR_DATA_UNAVAILABLE", "market data is unavailable").WithError(err)
	default:
		var appErr *xhttp.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return nil
	}
}

func cacheKey(req *models.AnalyzeRequest) string {
	return fmt.Sprintf("analyze:%s|%d|%s|%t", strings.ToUpper(strings.TrimSpace(req.Symbol)), req.N, req.TF, req.Narrative)
}

func (h *PatternsEchoHandler) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if h.cache == nil || h.cfg.CacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(ctx, key)
	if err != nil {
		h.logger.Warn("patterns.analyze cache_get_error", xlogger.Error(err))
		metrics.CacheResults.WithLabelValues("error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheResults.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheResults.WithLabelValues("hit").Inc()
	return b, true
}

func (h *PatternsEchoHandler) cacheSet(ctx context.Context, key string, b []byte) {
	if h.cache == nil || h.cfg.CacheTTL <= 0 {
		return
	}
	if err := h.cache.SetBytes(ctx, key, b, h.cfg.CacheTTL); err != nil {
		h.logger.Warn("patterns.analyze cache_set_error", xlogger.Error(err))
	}
}

var _ xhttp.Handler = (*PatternsEchoHandler)(nil)
