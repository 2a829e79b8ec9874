// Package metrics provides Prometheus metrics export for the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds the relay's Prometheus collectors.
type Exporter struct {
	registry *prometheus.Registry

	// Transport metrics
	MessagesReceived  *prometheus.CounterVec
	RepliesSent       prometheus.Counter
	ReconnectAttempts prometheus.Counter

	// AI metrics
	AIRequests *prometheus.CounterVec
	AILatency  prometheus.Histogram

	// Record log metrics
	RecordLogFailures prometheus.Counter
}

// New creates an Exporter with all collectors registered.
// If registry is nil a fresh one is created.
func New(registry *prometheus.Registry) *Exporter {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warelay",
			Subsystem: "transport",
			Name:      "messages_received_total",
			Help:      "Inbound messages by content kind",
		},
		[]string{"kind"},
	)

	e.RepliesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warelay",
			Subsystem: "transport",
			Name:      "replies_sent_total",
			Help:      "Outbound replies sent through the bridge",
		},
	)

	e.ReconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warelay",
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts dispatched by the connection supervisor",
		},
	)

	e.AIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "warelay",
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "AI generation requests by status",
		},
		[]string{"status"},
	)

	e.AILatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "warelay",
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "AI generation latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	e.RecordLogFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "warelay",
			Subsystem: "recordlog",
			Name:      "append_failures_total",
			Help:      "Record log appends that failed and were dropped",
		},
	)

	registry.MustRegister(
		e.MessagesReceived,
		e.RepliesSent,
		e.ReconnectAttempts,
		e.AIRequests,
		e.AILatency,
		e.RecordLogFailures,
	)
	return e
}

// Handler returns an http.Handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
