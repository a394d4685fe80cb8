package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Delivered prometheus.Counter
	Failed    prometheus.Counter
	Parked    prometheus.Counter
	Lag       prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_outbox_delivered_total",
			Help: "Total number of outbox entries delivered to the audit sink",
		}),
		Failed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_outbox_delivery_failures_total",
			Help: "Total number of outbox delivery rounds that exhausted their retries",
		}),
		Parked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jobmatch_outbox_parked_total",
			Help: "Total number of outbox entries that reached the attempt limit",
		}),
		Lag: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobmatch_outbox_relay_lag_seconds",
			Help:    "Time between an entry entering the outbox and its delivery",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

func (m *Metrics) IncDelivered() { m.Delivered.Inc() }
func (m *Metrics) IncFailed() { m.Failed.Inc() }
func (m *Metrics) IncParked() { m.Parked.Inc() }
func (m *Metrics) ObserveLag(seconds float64) { m.Lag.Observe(seconds) }
