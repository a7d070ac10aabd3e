package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "grantflow"

// Метрики выполнения команд.
var (
	CommandExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "command_executions_total",
		Help:      "Command executions by service, command and outcome",
	}, []string{"service", "command", "outcome"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Wall-clock duration of command executions including retries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "command"})

	CommandRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "command_retries_total",
		Help:      "Retry attempts performed by the executor",
	}, []string{"service", "command"})
)

// Метрики кеша клиентов.
var (
	ClientConstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "client_constructions_total",
		Help:      "Instance clients built by the client factories",
	}, []string{"family", "instance"})

	ClientCacheClears = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "client_cache_clears_total",
		Help:      "Explicit client cache evictions",
	}, []string{"family"})
)

// Метрики заявок.
var (
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Request tokens issued",
	})

	TokensRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_rejected_total",
		Help:      "Request tokens rejected by kind",
	}, []string{"kind"})

	StatusPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_polls_total",
		Help:      "Reconciled status polls by status and success",
	}, []string{"status", "successful"})
)

// Метрики worker pool.
var (
	PoolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "executor_pool_queue_depth",
		Help:      "Async command executions waiting for a worker",
	})
)

// Метрики HTTP API.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled by the API by method and status",
	}, []string{"method", "status"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Request lifecycle events published by type and outcome",
	}, []string{"type", "outcome"})
)
