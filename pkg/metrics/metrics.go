// Package metrics holds the Prometheus collectors of the dashboard service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes
const (
	OutcomeScored          = "scored"
	OutcomeRejected        = "rejected" // bad file, missing columns or labels
	OutcomeLabelDiversity  = "label_diversity"
	OutcomeUnknownCategory = "unknown_category"
	OutcomeCancelled       = "cancelled" // client gone or scoring timeout reached
	OutcomeError           = "error"
)

// Metrics groups the collectors registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	Uploads          *prometheus.CounterVec
	ScoredRows       prometheus.Counter
	TrainingDuration prometheus.Histogram
	PruneDeleted     prometheus.Counter
}

// NewMetrics creates and registers every collector
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "charterintel_uploads_total",
			Help: "Flight schedule uploads partitioned by outcome.",
		}, []string{"outcome"}),
		ScoredRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charterintel_scored_rows_total",
			Help: "Flight legs that received an empty-leg probability.",
		}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "charterintel_training_duration_seconds",
			Help:    "Time spent training and scoring one upload.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		PruneDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "charterintel_pruned_runs_total",
			Help: "Prediction runs removed by retention pruning.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Uploads,
		m.ScoredRows,
		m.TrainingDuration,
		m.PruneDeleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpload counts one upload outcome
func (m *Metrics) RecordUpload(outcome string) {
	m.Uploads.WithLabelValues(outcome).Inc()
}

// RecordScoring records a successful train and predict pass
func (m *Metrics) RecordScoring(rows int, elapsed time.Duration) {
	m.ScoredRows.Add(float64(rows))
	m.TrainingDuration.Observe(elapsed.Seconds())
}

// RecordPrune counts deleted runs
func (m *Metrics) RecordPrune(deleted int64) {
	m.PruneDeleted.Add(float64(deleted))
}
