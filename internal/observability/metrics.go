// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by key family and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// WebSocketConnectionsTotal is the gauge of active notification sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// BackgroundTasks counts processed background tasks by kind and outcome.
	BackgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_background_tasks_total",
		Help: "Background tasks processed by kind and outcome",
	}, []string{"kind", "outcome"})

	// BackgroundTaskFailures counts tasks that exhausted their retries.
	BackgroundTaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_background_task_failures_total",
		Help: "Background tasks that failed after all retries",
	}, []string{"kind"})

	// ChatSends counts chat sends by how the target chat was resolved.
	ChatSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_chat_sends_total",
		Help: "Chat sends by resolution (created, reused, reused_with_duplicates)",
	}, []string{"resolution"})

	// PurgeRuns counts purge attempts by outcome (skipped, lost_claim, success, error).
	PurgeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_purge_runs_total",
		Help: "Purge job runs by outcome",
	}, []string{"outcome"})

	// PurgedRows counts rows removed by the purge job per table.
	PurgedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_purged_rows_total",
		Help: "Rows deleted by the purge job",
	}, []string{"table"})

	// RateLimitDecisions counts rate limit checks by limit name and decision
	// (allowed, rejected, store_error).
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_rate_limit_decisions_total",
		Help: "Rate limit checks by limit and decision",
	}, []string{"limit", "decision"})

	// StorageOperations counts object storage calls by operation and outcome.
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_storage_operations_total",
		Help: "Object storage operations by operation and outcome",
	}, []string{"operation", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// Outcome turns an error into a metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
