// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the tutogate gates.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LookupBuckets defines histogram buckets for store round trips,
// ranging from 1ms to 5s (the default lookup timeout).
var LookupBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutogate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutogate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// GateDecisionsTotal counts gate outcomes. Outcome is "granted" or the
	// denial kind (e.g. "expired_token", "ownership_mismatch").
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutogate_gate_decisions_total",
			Help: "Gate decisions",
		},
		[]string{"gate", "outcome"},
	)

	// LookupDuration records identity and ownership store latency.
	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutogate_lookup_duration_seconds",
			Help:    "Store lookup latency",
			Buckets: LookupBuckets,
		},
		[]string{"lookup"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter,
	// labelled with the role whose limit applied.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutogate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"role"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		GateDecisionsTotal,
		LookupDuration,
		RateLimitRejectedTotal,
	)
}
