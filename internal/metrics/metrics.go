package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "resumezen"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Background job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time distribution",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_retries_total",
			Help:      "Total number of job retry attempts",
		},
		[]string{"type"},
	)

	PlansExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_plans_expired_total",
			Help:      "Total number of user plans deactivated after expiry",
		},
	)
)

// Business metrics
var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total number of resume analyses by final state",
		},
		[]string{"outcome"}, // completed, rejected_as_non_resume, failed, not_eligible
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent in each analysis stage",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	CreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_total",
			Help:      "Credit ledger operations",
		},
		[]string{"op", "result"}, // op: consume, refund
	)

	PlansPurchased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_purchased_total",
			Help:      "Total number of plans granted",
		},
		[]string{"plan"},
	)

	UploadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Uploads rejected by the validation gate",
		},
		[]string{"entry_point", "reason"},
	)

	PlanCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_cache_requests_total",
			Help:      "Plan catalog cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
)

// External provider metrics
var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of calls to external providers",
		},
		[]string{"provider", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "External provider call latency",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)
)

// AI cost tracking metrics (aggregate totals - no user label to avoid cardinality)
var (
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"type"}, // "input" or "output"
	)

	AICostCentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_cost_cents_total",
			Help:      "Total AI cost in cents",
		},
	)
)
