package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported on /metrics
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	AIRequests   *prometheus.CounterVec
	AIRetries    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		AIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_requests_total",
				Help: "Generative AI calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		AIRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_retries_total",
				Help: "Backoff retries triggered by provider rate limiting.",
			},
			[]string{"operation"},
		),
	}

	for _, c := range []prometheus.Collector{m.HTTPRequests, m.AIRequests, m.AIRetries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCall counts a finished AI call
func (m *Metrics) ObserveCall(operation, outcome string) {
	m.AIRequests.WithLabelValues(operation, outcome).Inc()
}

// ObserveRetry counts one rate-limit backoff
func (m *Metrics) ObserveRetry(operation string) {
	m.AIRetries.WithLabelValues(operation).Inc()
}
