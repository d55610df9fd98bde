// Package metrics exposes Prometheus counters for the session use cases.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by all counters.
const (
	OutcomeSuccess            = "success"
	OutcomeIdempotent         = "idempotent"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidSession     = "invalid_session"
	OutcomeNotActive          = "not_active"
	OutcomeNoActiveToken      = "no_active_token"
	OutcomeExpired            = "expired"
	OutcomeReuseDetected      = "reuse_detected"
	OutcomeConflict           = "conflict"
	OutcomeNoop               = "noop"
	OutcomeError              = "error"
)

// Logout scopes.
const (
	ScopeSession = "session"
	ScopeAll     = "all"
)

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   *prometheus.CounterVec
}

// New registers the counters on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "refreshes_total",
			Help:      "Refresh-token rotations by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessiond",
			Name:      "logouts_total",
			Help:      "Logout requests by scope and outcome.",
		}, []string{"scope", "outcome"}),
	}
	reg.MustRegister(
		m.logins,
		m.refreshes,
		m.logouts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Login counts one login attempt.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Refresh counts one refresh attempt.
func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// Logout counts one logout request.
func (m *Metrics) Logout(scope, outcome string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(scope, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
