package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow module. Tracks applied and
// rejected transitions per record type and the apply critical path duration.
type Metrics struct {
	TransitionsApplied  *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	ApplyDuration       prometheus.Histogram
}

// New creates a new Metrics instance with all workflow module metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "procureflow_transitions_applied_total",
			Help: "Total number of applied workflow transitions",
		}, []string{"record_type", "action"}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "procureflow_transitions_rejected_total",
			Help: "Total number of rejected transition attempts",
		}, []string{"record_type", "kind"}),
		ApplyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "procureflow_apply_duration_seconds",
			Help:    "Duration of workflow apply operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementApplied records an applied transition.
func (m *Metrics) IncrementApplied(recordType, action string) {
	m.TransitionsApplied.WithLabelValues(recordType, action).Inc()
}

// IncrementRejected records a rejected transition attempt.
func (m *Metrics) IncrementRejected(recordType, kind string) {
	m.TransitionsRejected.WithLabelValues(recordType, kind).Inc()
}

// ObserveApply records the duration of an apply operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApply(start time.Time) {
	m.ApplyDuration.Observe(time.Since(start).Seconds())
}
