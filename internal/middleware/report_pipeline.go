package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
)

// ReportPipeline sits between the engine and a downstream publisher such as Kafka.
// It validates reports and buffers them while downstream is unavailable.
type ReportPipeline struct {
	next    domrepo.ReportPublisher
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan *models.PatternReport
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	mu      sync.Mutex

	backoffMin time.Duration
	backoffMax time.Duration
}

type PipelineOption func(*ReportPipeline)

// WithBufferSize sets how many reports are held while downstream is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *ReportPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff sets the retry delay range of the background flusher.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ReportPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

func NewReportPipeline(next domrepo.ReportPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *ReportPipeline {
	p := &ReportPipeline{
		next:       next,
		metrics:    metrics,
		bufSize:    256,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.PatternReport, p.bufSize)
	return p
}

// Start launches background flushing of buffered reports.
func (p *ReportPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := p.backoffMin
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case r := <-p.bufCh:
				if err := p.next.Publish(ctx, r); err != nil {
					p.metrics.RecordError("pipeline_flush")
					if backoff < p.backoffMax {
						backoff *= 2
						if backoff > p.backoffMax {
							backoff = p.backoffMax
						}
					}
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- r:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = p.backoffMin
			}
		}
	}()
}

// Stop stops the flusher and waits for it to exit.
func (p *ReportPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Buffered returns the number of reports waiting for redelivery.
func (p *ReportPipeline) Buffered() int { return len(p.bufCh) }

// Publish validates and forwards the report, buffering it when downstream fails.
// The report is accepted once buffered, so the error only signals the failed attempt.
func (p *ReportPipeline) Publish(ctx context.Context, r *models.PatternReport) error {
	start := time.Now()
	if err := validateReport(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if err := p.next.Publish(ctx, r); err != nil {
		p.metrics.RecordError("pipeline_publish")
		select {
		case p.bufCh <- r:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_publish", time.Since(start).Seconds())
	return nil
}

func validateReport(r *models.PatternReport) error {
	if r == nil {
		return fmt.Errorf("report nil")
	}
	if r.ID == "" {
		return fmt.Errorf("report id empty")
	}
	if r.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	return nil
}

var _ domrepo.ReportPublisher = (*ReportPipeline)(nil)
