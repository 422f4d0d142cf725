package secretpage

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for authentication attempts.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics counts authentication activity on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	authAttempts        *prometheus.CounterVec
	sessionsEstablished *prometheus.CounterVec
	accessDenied        prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretpage",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		sessionsEstablished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretpage",
			Name:      "sessions_established_total",
			Help:      "Sessions established by strategy.",
		}, []string{"strategy"}),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretpage",
			Name:      "protected_access_denied_total",
			Help:      "Requests to protected routes without a valid session.",
		}),
	}
	m.registry.MustRegister(m.authAttempts, m.sessionsEstablished, m.accessDenied)
	return m
}

func (m *Metrics) AuthAttempt(strategy, outcome string) {
	m.authAttempts.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) SessionEstablished(strategy string) {
	m.sessionsEstablished.WithLabelValues(strategy).Inc()
}

func (m *Metrics) AccessDenied(*http.Request) {
	m.accessDenied.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
