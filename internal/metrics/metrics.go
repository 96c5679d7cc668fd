package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler 返回 Prometheus 指标的 HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTP 请求指标
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskqueue_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// 任务与调度指标
var (
	TasksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskqueue_tasks_created_total",
		Help: "Total number of tasks created",
	})

	TaskTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskqueue_task_transitions_total",
		Help: "Total number of task state transitions",
	}, []string{"to"})

	TasksDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskqueue_tasks_dispatched_total",
		Help: "Total number of tasks dispatched for execution",
	})

	TasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskqueue_tasks_running",
		Help: "Number of tasks currently running",
	})

	TaskExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskqueue_task_execution_duration_seconds",
		Help:    "Task execution time in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
	})

	TaskRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskqueue_task_retries_total",
		Help: "Total number of automatic task retries",
	})
)

// WebSocket 指标
var (
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskqueue_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	EventsBroadcastTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskqueue_events_broadcast_total",
		Help: "Total number of events broadcast to WebSocket clients",
	})
)
