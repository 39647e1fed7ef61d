// Package metrics exposes Prometheus collectors for the inbound listener and
// the upstream call chain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyBuckets spans 50ms to 5m; completions are slow and bounded by the
// request timeout.
var LatencyBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// Upstream call names used as the "call" label.
const (
	CallOrganizations = "organizations"
	CallConversation  = "chat_conversations"
	CallAppendMessage = "append_message"
)

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
)

var (
	// RequestsTotal counts inbound requests by route pattern and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slaude_requests_total",
			Help: "Inbound requests",
		},
		[]string{"route", "status"},
	)

	// RequestDuration records inbound request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slaude_request_duration_seconds",
			Help:    "Inbound request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"route"},
	)

	// InFlightRequests tracks inbound requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slaude_requests_in_flight",
			Help: "Inbound requests in flight",
		},
	)

	// UpstreamRequestsTotal counts outbound calls by call name and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slaude_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"call", "outcome"},
	)

	// UpstreamLatency records outbound call latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slaude_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: LatencyBuckets,
		},
		[]string{"call"},
	)

	// ScopeResolved is 1 once the organization scope is known, 0 otherwise.
	ScopeResolved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slaude_scope_resolved",
			Help: "Whether the organization scope has been resolved",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		UpstreamRequestsTotal,
		UpstreamLatency,
		ScopeResolved,
	)
}

// ObserveUpstream records one outbound call.
func ObserveUpstream(call, outcome string, started time.Time) {
	UpstreamRequestsTotal.WithLabelValues(call, outcome).Inc()
	UpstreamLatency.WithLabelValues(call).Observe(time.Since(started).Seconds())
}
