package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PatternScope/internal/domain/models"
	domsvc "PatternScope/internal/domain/service"
	"PatternScope/pkg/config"
	xhttp "PatternScope/pkg/http"
	applogger "PatternScope/pkg/logger"
)

const summarizePath = "/narrative/summarize"

// HTTPNarrator asks an external text service to describe a finished report.
// Its output is prose only and is never read back into scores.
type HTTPNarrator struct {
	baseURL string
	client  *xhttp.Client
	retries int
	log     *applogger.Logger
}

type summarizeRequest struct {
	Report *models.PatternReport `json:"report"`
}

type summarizeResponse struct {
	Narrative string `json:"narrative"`
}

// NewNarrator returns an HTTP narrator, or a Noop one when no service URL is configured.
func NewNarrator(cfg *config.Config, log *applogger.Logger, opts ...xhttp.ClientOption) domsvc.Narrator {
	if cfg.Narrative.ServiceURL == "" {
		return Noop{}
	}
	timeout := cfg.Narrative.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &HTTPNarrator{
		baseURL: strings.TrimRight(cfg.Narrative.ServiceURL, "/"),
		client:  xhttp.NewClient(opts...),
		retries: cfg.Narrative.Retries,
		log:     log,
	}
}

func (n *HTTPNarrator) Summarize(ctx context.Context, report *models.PatternReport) (string, error) {
	var resp summarizeResponse
	if err := n.postJSONWithRetry(ctx, summarizePath, summarizeRequest{Report: report}, &resp); err != nil {
		n.log.Warn("narrative request failed",
			applogger.String("symbol", report.Symbol),
			applogger.String("report_id", report.ID),
			applogger.Error(err),
		)
		return "", fmt.Errorf("%w: %v", models.ErrNarrativeUnavailable, err)
	}
	if strings.TrimSpace(resp.Narrative) == "" {
		return "", fmt.Errorf("%w: empty narrative", models.ErrNarrativeUnavailable)
	}
	return resp.Narrative, nil
}

func (n *HTTPNarrator) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     n.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// postJSONWithRetry retries transport failures and 5xx/429 responses with linear backoff.
func (n *HTTPNarrator) postJSONWithRetry(ctx context.Context, path string, payload, dest interface{}) error {
	attempts := n.retries + 1
	var err error
	for i := 1; i <= attempts; i++ {
		err = n.postJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Noop is used when no narrative service is configured.
type Noop struct{}

func (Noop) Summarize(context.Context, *models.PatternReport) (string, error) {
	return "", fmt.Errorf("%w: no narrative service configured", models.ErrNarrativeUnavailable)
}

var (
	_ domsvc.Narrator = (*HTTPNarrator)(nil)
	_ domsvc.Narrator = Noop{}
)
