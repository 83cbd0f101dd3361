package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// defaultBuckets mirrors the teacher's internal/metrics latency buckets.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds the Prometheus collectors for the pass pipeline engine
// itself — upstream dial/response latency, WebSocket upgrade outcomes,
// and error/econnreset counts — separate from the ambient
// internal/metrics package, which instruments the Echo listener that
// fronts a *Server (spec.md §1 draws that same boundary: the engine is the
// core; the listener is an external collaborator).
type Metrics struct {
	Registry *prometheus.Registry

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	WSUpgrades        *prometheus.CounterVec
	Errors            *prometheus.CounterVec
	ECONNRESETs       prometheus.Counter
}

// NewMetrics creates a Metrics instance registered against reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Registry: reg,

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reverseproxy_upstream_duration_seconds",
			Help:    "Upstream request latency in seconds, by proxy role.",
			Buckets: defaultBuckets,
		}, []string{"role"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reverseproxy_upstream_responses_total",
			Help: "Total upstream responses by role and status code.",
		}, []string{"role", "status_code"}),

		WSUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reverseproxy_ws_upgrades_total",
			Help: "Total WebSocket upgrade attempts by outcome.",
		}, []string{"outcome"}),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reverseproxy_errors_total",
			Help: "Total proxy errors emitted via the error event.",
		}, []string{"kind"}),

		ECONNRESETs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reverseproxy_econnreset_total",
			Help: "Total ECONNRESET events swallowed after client disconnect.",
		}),
	}

	reg.MustRegister(
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.WSUpgrades,
		m.Errors,
		m.ECONNRESETs,
	)

	return m
}
