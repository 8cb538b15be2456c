// Package metrics holds the Prometheus collectors shared by the backend
// client, the reconciler and the screen API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "washdesk",
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "Backend API calls broken down by endpoint and result.",
	}, []string{"endpoint", "result"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "washdesk",
		Subsystem: "backend",
		Name:      "latency_seconds",
		Help:      "Latency distribution for backend API calls.",
		Buckets: []float64{
			0.01, 0.02, 0.05,
			0.1, 0.2, 0.5,
			1, 2, 5, 10,
		},
	}, []string{"endpoint", "result"})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "washdesk",
		Subsystem: "assignment",
		Name:      "submissions_total",
		Help:      "Assignment submissions by outcome (committed, failed, rejected).",
	}, []string{"outcome"})

	OpenScreens = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "washdesk",
		Subsystem: "screen",
		Name:      "open",
		Help:      "Order screens currently held open.",
	})
)

// Result buckets an HTTP status code the way the counters label it.
func Result(status int) string {
	switch {
	case status == 0:
		return "transport_error"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
