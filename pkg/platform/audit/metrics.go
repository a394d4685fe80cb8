package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit recording.
type Metrics struct {
	Recorded       *prometheus.CounterVec
	RecordFailures prometheus.Counter
	RecordDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_audit_recorded_total",
			Help: "Total number of audit entries written to the outbox",
		}, []string{"event"}),
		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_audit_record_failures_total",
			Help: "Total number of audit entries that could not be written to the outbox",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobmatch_audit_record_duration_seconds",
			Help:    "Time spent appending an audit entry to the outbox",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
	}
}

func (m *Metrics) IncRecorded(event Event) {
	m.Recorded.WithLabelValues(string(event)).Inc()
}

func (m *Metrics) IncRecordFailures() {
	m.RecordFailures.Inc()
}

func (m *Metrics) ObserveRecordDuration(seconds float64) {
	m.RecordDuration.Observe(seconds)
}
