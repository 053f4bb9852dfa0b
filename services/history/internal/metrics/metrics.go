// Package metrics defines the history service's Prometheus collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "history",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "history",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	ProgressUpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "history",
		Name:      "progress_upserts_total",
		Help:      "Accepted progress writes by media type.",
	}, []string{"media_type"})

	MediaCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "history",
		Name:      "media_completed_total",
		Help:      "Records that crossed the completion threshold.",
	})

	ContinueWatchingQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "history",
		Name:      "continue_watching_queries_total",
		Help:      "Continue-watching list queries served.",
	})

	EventsConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "history",
		Name:      "progress_events_consumed_total",
		Help:      "Progress events consumed from JetStream by outcome.",
	}, []string{"outcome"})
)

// Register registers all collectors on reg. Call once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProgressUpsertsTotal,
		MediaCompletedTotal,
		ContinueWatchingQueriesTotal,
		EventsConsumedTotal,
	)
}
