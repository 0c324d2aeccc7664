// Package observability holds the Prometheus collectors shared by the broker,
// the transport client and the reasoning loop. All recorders are safe to call
// on a nil *Metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors.
type Metrics struct {
	registry       *prometheus.Registry
	BrokerSessions prometheus.Gauge
	BrokerCalls    *prometheus.CounterVec
	BrokerDuration *prometheus.HistogramVec
	TransportErrs  *prometheus.CounterVec
	ReactSessions  *prometheus.CounterVec
	ReactSteps     *prometheus.CounterVec
}

// NewMetrics constructs a registry with every collector registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rail_broker_sessions",
		Help: "Registered broker sessions",
	})

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rail_broker_calls_total",
		Help: "Calls routed by the broker by outcome",
	}, []string{"outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rail_broker_call_duration_seconds",
		Help:    "Duration of calls routed by the broker",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rail_transport_errors_total",
		Help: "Transport client failures by error kind",
	}, []string{"kind"})

	reactSessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rail_react_sessions_total",
		Help: "Reasoning sessions by terminal status",
	}, []string{"status"})

	reactSteps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rail_react_steps_total",
		Help: "Reasoning steps by action kind",
	}, []string{"action"})

	reg.MustRegister(sessions, calls, durs, trErrors, reactSessions, reactSteps)

	return &Metrics{
		registry:       reg,
		BrokerSessions: sessions,
		BrokerCalls:    calls,
		BrokerDuration: durs,
		TransportErrs:  trErrors,
		ReactSessions:  reactSessions,
		ReactSteps:     reactSteps,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetBrokerSessions records the current session count.
func (m *Metrics) SetBrokerSessions(n int) {
	if m == nil {
		return
	}
	m.BrokerSessions.Set(float64(n))
}

// RecordBrokerCall records a routed call.
func (m *Metrics) RecordBrokerCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.BrokerCalls.WithLabelValues(outcome).Inc()
	m.BrokerDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordTransportError records a failed transport call.
func (m *Metrics) RecordTransportError(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.TransportErrs.WithLabelValues(kind).Inc()
}

// RecordReactSession records a finished reasoning session.
func (m *Metrics) RecordReactSession(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.ReactSessions.WithLabelValues(status).Inc()
}

// RecordReactStep records one reasoning step.
func (m *Metrics) RecordReactStep(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.ReactSteps.WithLabelValues(action).Inc()
}
