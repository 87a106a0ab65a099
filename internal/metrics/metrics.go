package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solace_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ChatMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solace_chat_messages_sent_total",
			Help: "Total number of assistant responses streamed to users.",
		},
		[]string{"chat_type"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solace_generation_duration_seconds",
			Help:    "End-to-end response generation duration in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	MemoryServiceTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solace_memory_service_timeouts_total",
			Help: "Memory service calls that timed out and fell back to empty results.",
		},
		[]string{"op"},
	)

	ModelCallErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solace_model_call_errors_total",
			Help: "Completion model calls that failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChatMessagesSent,
		GenerationDuration,
		MemoryServiceTimeouts,
		ModelCallErrors,
	)
}
