package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all search pipeline metrics.
	MetricsNamespace = "esquery"

	// MetricsSubsystem is the subsystem for pipeline metrics.
	MetricsSubsystem = "pipeline"
)

// Metrics holds Prometheus metrics for the search pipeline.
type Metrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDurationSeconds *prometheus.HistogramVec
	RecordsReturned      *prometheus.HistogramVec
}

// NewMetrics creates and registers pipeline metrics. A nil registerer falls
// back to the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "queries_total",
				Help:      "Total number of search queries executed",
			},
			[]string{"index", "status"},
		),
		QueryDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "query_duration_seconds",
				Help:      "End-to-end duration of search queries in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"index"},
		),
		RecordsReturned: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Subsystem: MetricsSubsystem,
				Name:      "records_returned",
				Help:      "Number of records returned per query",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
			},
			[]string{"index"},
		),
	}
}

// RecordQuery records a completed query with its outcome.
func (m *Metrics) RecordQuery(index, status string, durationSeconds float64, records int) {
	m.QueriesTotal.WithLabelValues(index, status).Inc()
	m.QueryDurationSeconds.WithLabelValues(index).Observe(durationSeconds)
	if status == "success" {
		m.RecordsReturned.WithLabelValues(index).Observe(float64(records))
	}
}
