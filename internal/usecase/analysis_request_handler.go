package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
	xhttp "PatternScope/pkg/http"
	pkgkafka "PatternScope/pkg/kafka"
	applogger "PatternScope/pkg/logger"
)

// AnalysisRequestHandler runs one analysis per Kafka message.
// The finished report leaves through the engine's publisher.
type AnalysisRequestHandler struct {
	topic   string
	uc      *AnalysisUseCase
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAnalysisRequestHandler(topic string, uc *AnalysisUseCase, metrics domrepo.Metrics, l *applogger.Logger) *AnalysisRequestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalysisRequestHandler{topic: topic, uc: uc, metrics: metrics, l: l}
}

func (h *AnalysisRequestHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, n, tf}
func (h *AnalysisRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalyzeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return permanent(fmt.Errorf("decode analysis request: %w", err))
	}
	if verrs := xhttp.DefaultAndValidate(ctx, &req); verrs != nil {
		h.metrics.RecordError("consumer_validate")
		return permanent(fmt.Errorf("invalid analysis request: %v", verrs))
	}
	// Prose is only served over HTTP.
	req.Narrative = false

	_, err := h.uc.Analyze(ctx, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrInsufficientData):
		h.l.Warn("analysis request skipped",
			applogger.String("symbol", req.Symbol),
			applogger.Error(err),
		)
		return nil
	case errors.Is(err, models.ErrInvalidSample):
		h.metrics.RecordError("consumer_invalid_window")
		return permanent(err)
	default:
		return err
	}
}

// permanent marks errors that retrying cannot fix; the consumer sends them to the DLQ at once.
func permanent(err error) error { return &pkgkafka.PermanentError{Err: err} }

var _ pkgkafka.MessageHandler = (*AnalysisRequestHandler)(nil)
