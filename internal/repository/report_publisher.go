package repository

import (
	"context"
	"errors"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
)

// MessageProducer is the subset of pkg/kafka.Producer used for reports.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaReportPublisher writes finished reports to a topic keyed by symbol,
// so a consumer sees one symbol's reports in order.
type KafkaReportPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaReportPublisher(producer MessageProducer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.PatternReport) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), r)
}

// MultiPublisher delivers a report to every publisher and joins their errors.
type MultiPublisher []domrepo.ReportPublisher

func (m MultiPublisher) Publish(ctx context.Context, r *models.PatternReport) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)
	_ domrepo.ReportPublisher = MultiPublisher(nil)
)
