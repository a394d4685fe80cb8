package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the application lifecycle.
type Metrics struct {
	Applied               prometheus.Counter
	ApplyRejected         *prometheus.CounterVec
	Accepts               *prometheus.CounterVec
	CascadeRejections     prometheus.Counter
	Completions           prometheus.Counter
	SiblingLookupFailures prometheus.Counter
	OperationDuration     *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Applied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_applications_applied_total",
			Help: "Total number of applications created",
		}),
		ApplyRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_apply_rejected_total",
			Help: "Total number of apply attempts refused, by reason",
		}, []string{"reason"}),
		Accepts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmatch_accepts_total",
			Help: "Total number of accept attempts, by outcome",
		}, []string{"outcome"}),
		CascadeRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_cascade_rejections_total",
			Help: "Total number of pending applications rejected because a sibling was accepted",
		}),
		Completions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_completions_total",
			Help: "Total number of applications marked completed",
		}),
		SiblingLookupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_overlap_sibling_lookup_failures_total",
			Help: "Total number of held-job catalog lookups that failed during overlap detection",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobmatch_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncApplied() { m.Applied.Inc() }

func (m *Metrics) IncApplyRejected(reason string) {
	m.ApplyRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncAccept(outcome string) {
	m.Accepts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddCascadeRejections(n int) {
	m.CascadeRejections.Add(float64(n))
}

func (m *Metrics) IncCompletions() { m.Completions.Inc() }

func (m *Metrics) IncSiblingLookupFailures() { m.SiblingLookupFailures.Inc() }

func (m *Metrics) ObserveOperation(operation string, seconds float64) {
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}
