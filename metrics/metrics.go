package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// UpstreamRequestsTotal counts calls to the inference API by endpoint and result.
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "web",
		Name:      "upstream_requests_total",
		Help:      "Total number of inference API calls, labeled by endpoint and result (ok, api_error, unavailable, canceled).",
	}, []string{"endpoint", "result"})

	// UpstreamDurationSeconds is the latency of inference API calls.
	UpstreamDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cropguard",
		Subsystem: "web",
		Name:      "upstream_duration_seconds",
		Help:      "Latency of inference API calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	// UploadRejectedTotal counts rejected uploads by reason.
	UploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "web",
		Name:      "upload_rejected_total",
		Help:      "Total number of rejected image uploads, labeled by reason.",
	}, []string{"reason"})

	// StaleResponsesTotal counts responses discarded because a newer request superseded them.
	StaleResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "web",
		Name:      "stale_responses_total",
		Help:      "Total number of API responses dropped because a newer request of the same kind was started.",
	}, []string{"kind"})

	// ActiveSessions is the number of live browser sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cropguard",
		Subsystem: "web",
		Name:      "active_sessions",
		Help:      "Number of browser sessions currently held in memory.",
	})

	// HTTPRequestDurationSeconds is the latency of requests served by the frontend.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cropguard",
		Subsystem: "web",
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests served by the frontend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// Register registers frontend metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			UpstreamRequestsTotal,
			UpstreamDurationSeconds,
			UploadRejectedTotal,
			StaleResponsesTotal,
			ActiveSessions,
			HTTPRequestDurationSeconds,
		)
	})
}
