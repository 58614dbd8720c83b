package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "patternscope",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of pattern endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternscope",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by pattern endpoint and code",
		},
		[]string{"endpoint", "code"},
	)

	CacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "patternscope",
			Subsystem: "api",
			Name:      "report_cache_total",
			Help:      "Report cache lookups by result",
		},
		[]string{"result"},
	)

	StreamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "patternscope",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected report stream clients",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheResults, StreamClients)
	})
}
