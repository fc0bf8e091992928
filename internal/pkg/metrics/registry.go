package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total database operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_db_operations_total",
			Help: "Total database operations by repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks database operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "veyl_db_operation_duration_ms",
			Help:                            "Database operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks database errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_db_errors_total",
			Help: "Total database errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// HTTP Metrics
var (
	// HTTPRequests tracks API requests by route, method, and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_http_requests_total",
			Help: "Total HTTP requests by route, method, and status",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPDuration tracks request latency by route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "veyl_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"route", "method"},
	)
)

// Outbound provider call metrics (Meta, TikTok, Google OAuth endpoints)
var (
	// ProviderCalls tracks outbound API calls by provider, endpoint, and status
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_provider_calls_total",
			Help: "Total outbound provider API calls by provider, operation, and status",
		},
		[]string{"provider", "operation", "status"},
	)

	// ProviderDuration tracks outbound call latency
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "veyl_provider_call_duration_ms",
			Help:                            "Outbound provider call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"provider", "operation"},
	)

	// ProviderRetries tracks transient-failure retries of outbound calls
	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_provider_retries_total",
			Help: "Total retried outbound provider calls by provider and operation",
		},
		[]string{"provider", "operation"},
	)
)

// Auth metrics
var (
	// OAuthLogins tracks completed OAuth callbacks by provider and outcome
	OAuthLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_oauth_logins_total",
			Help: "Total OAuth callback completions by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// UsersCreated tracks newly provisioned users by origin (local, oauth)
	UsersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_users_created_total",
			Help: "Total users created by origin",
		},
		[]string{"origin"},
	)
)

// Reconciliation metrics
var (
	// HashtagsLinked counts post-hashtag links created by reconciliation
	HashtagsLinked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "veyl_hashtags_linked_total",
			Help: "Total post-hashtag links created by caption reconciliation",
		},
	)

	// PostsReconciled counts posts run through caption reconciliation
	PostsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veyl_posts_reconciled_total",
			Help: "Total posts run through hashtag reconciliation by status",
		},
		[]string{"status"},
	)
)
