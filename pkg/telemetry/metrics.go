package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Queue ───────────────────────────────────────────────────────────────────

	QueueTasksAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "queue",
		Name:      "tasks_added_total",
		Help:      "Total tasks added to the queue, labelled by priority and type.",
	}, []string{"priority", "task_type"})

	QueueTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskqueue",
		Subsystem: "queue",
		Name:      "tasks",
		Help:      "Tasks currently in the queue document, labelled by status.",
	}, []string{"status"})

	QueueHealthScore = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskqueue",
		Subsystem: "queue",
		Name:      "health_score",
		Help:      "Queue health score between 0 and 100.",
	})

	QueueTasksCleared = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "queue",
		Name:      "tasks_cleared_total",
		Help:      "Total finished tasks removed by clear.",
	})

	// ─── Executor ────────────────────────────────────────────────────────────────

	ExecutorTasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "executor",
		Name:      "tasks_processed_total",
		Help:      "Total task runs, labelled by task_type and resulting status.",
	}, []string{"task_type", "status"})

	ExecutorTasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskqueue",
		Subsystem: "executor",
		Name:      "tasks_inflight",
		Help:      "Tasks currently being executed by this process.",
	})

	ExecutorTaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskqueue",
		Subsystem: "executor",
		Name:      "task_duration_seconds",
		Help:      "Wall-clock task execution time in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"task_type"})

	ExecutorRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "executor",
		Name:      "retries_total",
		Help:      "Total failed runs that were scheduled for another attempt.",
	}, []string{"task_type"})

	ExecutorTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "executor",
		Name:      "timeouts_total",
		Help:      "Total runs killed for exceeding their timeout.",
	}, []string{"task_type"})

	// ─── Storage ─────────────────────────────────────────────────────────────────

	StoreDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "store",
		Name:      "degraded_total",
		Help:      "Total document operations that recovered from corruption or ran without a lock.",
	}, []string{"reason"})

	// ─── Patterns and quality ────────────────────────────────────────────────────

	PatternsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "patterns",
		Name:      "stored_total",
		Help:      "Total patterns recorded, labelled by task type.",
	}, []string{"task_type"})

	QualityRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "quality",
		Name:      "records_total",
		Help:      "Total quality records appended.",
	})

	// ─── Dashboard ───────────────────────────────────────────────────────────────

	DashboardRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskqueue",
		Subsystem: "dashboard",
		Name:      "http_requests_total",
		Help:      "Total dashboard HTTP requests, labelled by route pattern and status code.",
	}, []string{"route", "code"})
)

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for node_exporter's textfile collector. Short-lived CLI runs use this
// instead of an HTTP endpoint.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
