package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/handlers"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

// Queue is the subset of *queue.Queue the executor drives.
type Queue interface {
	Claim(ctx context.Context) (*domain.Task, error)
	ClaimByID(ctx context.Context, id string) (*domain.Task, error)
	Finish(ctx context.Context, id string, o queue.Outcome) (*domain.Task, error)
	Status(ctx context.Context) (queue.Summary, error)
}

// Run describes one execution attempt.
type Run struct {
	TaskID     string        `json:"task_id"`
	Name       string        `json:"name"`
	Attempt    int           `json:"attempt"`
	Status     domain.Status `json:"status"`
	ExitCode   *int          `json:"exit_code,omitempty"`
	DurationMs int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
}

// Report summarises an Execute call.
type Report struct {
	Runs      []Run    `json:"runs"`
	Executed  int      `json:"executed"`
	Completed int      `json:"completed"`
	Retried   int      `json:"retried"`
	Failed    int      `json:"failed"`
	Blocked   []string `json:"blocked,omitempty"`
	Stopped   string   `json:"stopped,omitempty"`
}

func (r *Report) add(run Run) {
	r.Runs = append(r.Runs, run)
	r.Executed++
	switch run.Status {
	case domain.StatusCompleted:
		r.Completed++
	case domain.StatusRetrying:
		r.Retried++
	case domain.StatusFailed:
		r.Failed++
	}
}

// Executor runs ready tasks one at a time.
type Executor struct {
	queue       Queue
	registry    *handlers.Registry
	stopOnError bool
	maxRuns     int
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

func WithStopOnError(b bool) Option    { return func(e *Executor) { e.stopOnError = b } }
func WithMaxRuns(n int) Option         { return func(e *Executor) { e.maxRuns = n } }
func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.logger = l } }

// NewExecutor constructs an Executor with the given dependencies and options.
func NewExecutor(q Queue, registry *handlers.Registry, opts ...Option) *Executor {
	e := &Executor{
		queue:    q,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute claims and runs tasks until none is ready, ctx is cancelled, the
// run limit is hit, or (with stop-on-error) a task fails for good. A task
// that fails with budget left is re-selected right away in the same call.
func (e *Executor) Execute(ctx context.Context) (Report, error) {
	var rep Report
	for {
		if ctx.Err() != nil {
			rep.Stopped = "interrupted"
			break
		}
		if e.maxRuns > 0 && rep.Executed >= e.maxRuns {
			rep.Stopped = "run limit reached"
			break
		}

		task, err := e.queue.Claim(ctx)
		if err != nil {
			return e.finalize(ctx, rep), err
		}
		if task == nil {
			break
		}

		run := e.execute(ctx, task)
		rep.add(run)
		if run.Status == domain.StatusFailed && e.stopOnError {
			rep.Stopped = "task " + run.TaskID + " failed"
			break
		}
	}
	return e.finalize(ctx, rep), nil
}

// ExecuteTask force-runs one task by id, bypassing priority order.
func (e *Executor) ExecuteTask(ctx context.Context, id string) (Report, error) {
	var rep Report
	task, err := e.queue.ClaimByID(ctx, id)
	if err != nil {
		return rep, err
	}
	rep.add(e.execute(ctx, task))
	return e.finalize(ctx, rep), nil
}

func (e *Executor) finalize(ctx context.Context, rep Report) Report {
	sum, err := e.queue.Status(context.WithoutCancel(ctx))
	if err != nil {
		e.logger.Warn("could not compute blocked tasks", slog.String("error", err.Error()))
		return rep
	}
	rep.Blocked = sum.Blocked
	return rep
}

// execute runs a claimed task and records its outcome. The queue lock is not
// held here; Finish takes it again once the handler returns.
func (e *Executor) execute(ctx context.Context, task *domain.Task) Run {
	ctx, span := otel.Tracer("taskqueue").Start(ctx, "executor.run_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.type", string(task.Type)),
		attribute.String("task.priority", string(task.Priority)),
		attribute.Int("task.attempt", task.CurrentRetry+1),
	)

	log := e.logger.With(
		slog.String("task_id", task.ID),
		slog.String("task_type", string(task.Type)),
		slog.Int("attempt", task.CurrentRetry+1),
	)

	telemetry.ExecutorTasksInFlight.Inc()
	defer telemetry.ExecutorTasksInFlight.Dec()

	start := time.Now()
	res, execErr := e.handle(ctx, task, log)
	duration := time.Since(start)
	telemetry.ExecutorTaskDurationSeconds.WithLabelValues(string(task.Type)).Observe(duration.Seconds())

	var timeout *domain.SubprocessTimeoutError
	if errors.As(execErr, &timeout) {
		telemetry.ExecutorTimeoutsTotal.WithLabelValues(string(task.Type)).Inc()
	}

	run := Run{
		TaskID:     task.ID,
		Name:       task.Name,
		Attempt:    task.CurrentRetry + 1,
		ExitCode:   res.ExitCode,
		DurationMs: duration.Milliseconds(),
	}

	// Record the outcome even when the caller was interrupted, otherwise the
	// task would look running until it goes stale.
	finished, err := e.queue.Finish(context.WithoutCancel(ctx), task.ID, queue.Outcome{
		Err:      execErr,
		Output:   res.Output,
		ExitCode: res.ExitCode,
	})
	if err != nil {
		log.Error("failed to record outcome", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "finish failed")
		run.Status = domain.StatusFailed
		run.Error = fmt.Sprintf("record outcome: %v", err)
		return run
	}

	run.Status = finished.Status
	run.Error = finished.Error
	telemetry.ExecutorTasksProcessed.WithLabelValues(string(task.Type), string(finished.Status)).Inc()

	switch finished.Status {
	case domain.StatusCompleted:
		log.Info("task completed", slog.Int64("duration_ms", run.DurationMs))
	case domain.StatusRetrying:
		telemetry.ExecutorRetriesTotal.WithLabelValues(string(task.Type)).Inc()
		log.Warn("attempt failed, will retry",
			slog.String("error", finished.Error),
			slog.Int("current_retry", finished.CurrentRetry),
			slog.Int("max_retries", finished.MaxRetries),
		)
	case domain.StatusFailed:
		log.Error("task failed after all retries",
			slog.String("error", finished.Error),
			slog.Int64("duration_ms", run.DurationMs),
		)
	default:
		log.Info("task left running state while executing", slog.String("status", string(finished.Status)))
	}
	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "task run failed")
	}
	return run
}

func (e *Executor) handle(ctx context.Context, task *domain.Task, log *slog.Logger) (handlers.Result, error) {
	h, err := e.registry.Get(task.Type)
	if err != nil {
		log.Error("no handler for task type", slog.String("error", err.Error()))
		return handlers.Result{}, err
	}
	return h.Handle(ctx, task)
}
