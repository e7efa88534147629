// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

// Package metrics holds the Prometheus collectors for the control plane.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Log pipeline
	LogRecordsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_log_records_appended_total",
			Help: "Total number of log records appended to the pipeline",
		},
		[]string{"level"},
	)

	LogWriteQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_log_write_queue_dropped_total",
			Help: "Log records not persisted because the durable write queue was full",
		},
	)

	LogWriteQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchtower_log_write_queue_depth",
			Help: "Log records waiting for the durable writer",
		},
	)

	LogPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_log_persist_failures_total",
			Help: "Durable log writes that failed",
		},
	)

	LogSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchtower_log_subscribers",
			Help: "Currently registered log subscribers",
		},
	)

	LogSubscriberDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_log_subscriber_dropped_total",
			Help: "Log records evicted from a slow subscriber queue",
		},
	)

	LogRetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_log_retention_deleted_total",
			Help: "Durable log records removed by the retention sweep",
		},
	)

	// Token ledger
	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_tokens_issued_total",
			Help: "Token pairs issued",
		},
	)

	TokensRotated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_tokens_rotated_total",
			Help: "Refresh token rotations that succeeded",
		},
	)

	TokensRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_tokens_revoked_total",
			Help: "Refresh token families revoked",
		},
		[]string{"scope"}, // "single", "user"
	)

	TokenVerifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_token_verify_failures_total",
			Help: "Token verifications that failed",
		},
		[]string{"kind", "reason"},
	)

	TokenCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchtower_token_cache_entries",
			Help: "Refresh families held in the in-memory cache",
		},
	)

	TokenStoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_token_store_failures_total",
			Help: "Durable token store operations that failed",
		},
		[]string{"operation"},
	)

	// Lockdown
	LockdownActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchtower_lockdown_active",
			Help: "1 while a lockdown is active",
		},
	)

	LockdownTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_lockdown_transitions_total",
			Help: "Lockdown state transitions",
		},
		[]string{"to", "by"}, // by: "operator", "system"
	)

	LockdownDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchtower_lockdown_access_decisions_total",
			Help: "Access checks evaluated while locked",
		},
		[]string{"decision"}, // "admin_bypass", "allowlist", "denied"
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Authorization
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions on protected routes",
		},
		[]string{"decision"}, // "allow", "deny", "error"
	)

	AuthzCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Authorization decisions served from cache",
		},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event bus circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchtower_events_published_total",
			Help: "Log records forwarded to the event bus",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordTokenVerifyFailure records a failed verification by token kind and reason.
func RecordTokenVerifyFailure(kind, reason string) {
	TokenVerifyFailures.WithLabelValues(kind, reason).Inc()
}

// SetLockdownActive mirrors the controller state into the gauge.
func SetLockdownActive(active bool) {
	if active {
		LockdownActive.Set(1)
		return
	}
	LockdownActive.Set(0)
}
