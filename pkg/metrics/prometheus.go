package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	analyses       *prometheus.CounterVec
	detectorErrors *prometheus.CounterVec
	confidence     *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscope_analyses_total",
				Help: "Total number of analyses by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		detectorErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscope_detector_errors_total",
				Help: "Detector failures recovered without aborting an analysis",
			},
			[]string{"detector"},
		),
		confidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternscope_signal_confidence",
				Help:    "Confidence of emitted signals",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patternscope_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patternscope_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts a finished or failed analysis.
func (r *Recorder) RecordAnalysis(symbol, outcome string) {
	r.analyses.WithLabelValues(symbol, outcome).Inc()
}

// RecordDetectorError counts a recovered detector failure.
func (r *Recorder) RecordDetectorError(detector string) {
	r.detectorErrors.WithLabelValues(detector).Inc()
}

// RecordSignal observes the confidence of an emitted signal.
func (r *Recorder) RecordSignal(patternType string, confidence float64) {
	r.confidence.WithLabelValues(patternType).Observe(confidence)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
