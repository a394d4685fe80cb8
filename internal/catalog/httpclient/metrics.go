package httpclient

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jobmatch/pkg/platform/sentinel"
)

const (
	outcomeSuccess     = "success"
	outcomeNotFound    = "not_found"
	outcomeUnavailable = "unavailable"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, sentinel.ErrNotFound):
		return outcomeNotFound
	default:
		return outcomeUnavailable
	}
}

type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobmatch_catalog_request_duration_seconds",
			Help:    "Job catalog lookup latency by outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveRequest(outcome string, seconds float64) {
	m.RequestDuration.WithLabelValues(outcome).Observe(seconds)
}
