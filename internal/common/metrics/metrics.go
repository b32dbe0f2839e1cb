// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Search gateway calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Search gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SearchPhases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_phase_outcomes_total",
			Help: "Pipeline runs by the phase that produced the final result",
		},
		[]string{"phase"},
	)

	SearchVariantsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_variants_issued_total",
			Help: "Query variants sent to the gateway per fan-out pass",
		},
		[]string{"pass"},
	)

	CacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_fallbacks_total",
			Help: "Cache fallback attempts by outcome",
		},
		[]string{"outcome"},
	)

	FilterDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filter_dropped_total",
			Help: "Businesses removed by the client-side filter stage",
		},
		[]string{"reason"},
	)

	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Proxy requests by route and response status",
		},
		[]string{"route", "status"},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Upstream provider calls by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)
)
