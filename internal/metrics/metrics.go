// Package metrics exposes Prometheus counters for registration runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes used as the "outcome" label.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Metrics tracks row outcomes, batch counts and persistence failures.
type Metrics struct {
	Rows            *prometheus.CounterVec
	Batches         *prometheus.CounterVec
	PersistFailures prometheus.Counter
	BatchDuration   prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates a Metrics instance registered on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers all metrics on reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "register_rows_total",
			Help: "Total number of data rows processed, by outcome",
		}, []string{"outcome"}),
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "register_batches_total",
			Help: "Total number of registration runs, by status",
		}, []string{"status"}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "register_persist_failures_total",
			Help: "Total number of failed attempts to persist registered accounts",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "register_batch_duration_seconds",
			Help:    "Duration of a registration run from first row to summary",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		gatherer: g,
	}
}

// ObserveBatch records the outcome of one registration run.
// Call with time.Now() at the start of the run.
func (m *Metrics) ObserveBatch(accepted, rejected int, err error, start time.Time) {
	if m == nil {
		return
	}
	m.Rows.WithLabelValues(OutcomeAccepted).Add(float64(accepted))
	m.Rows.WithLabelValues(OutcomeRejected).Add(float64(rejected))

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Batches.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(time.Since(start).Seconds())
}

// IncrementPersistFailures records a failed store write.
func (m *Metrics) IncrementPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
