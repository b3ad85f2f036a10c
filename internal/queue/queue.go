// Package queue implements the priority task queue kept in task_queue.json.
//
// Every operation is one load → mutate → save cycle under the document's
// exclusive lock; nothing is cached between calls.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/jsonstore"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

const (
	// FileName is the queue document inside the data directory.
	FileName = "task_queue.json"
	// DocumentVersion is written into new documents.
	DocumentVersion = "1.0"

	DefaultTimeoutSeconds = 300
	DefaultMaxRetries     = 3
	defaultStaleGrace     = time.Minute
)

// Document is the on-disk shape of the queue.
type Document struct {
	Version string        `json:"version"`
	Tasks   []domain.Task `json:"tasks"`
}

// NewDocument returns an empty queue document.
func NewDocument() Document {
	return Document{Version: DocumentVersion, Tasks: []domain.Task{}}
}

// Observer is told about every task whose state a queue operation saved.
type Observer interface {
	Observe(ctx context.Context, task domain.Task)
}

// Queue manages the tasks of one data directory.
type Queue struct {
	store      *jsonstore.Store[Document]
	logger     *slog.Logger
	now        func() time.Time
	staleGrace time.Duration
	observers  []Observer
	storeOpts  []jsonstore.Option
}

// Option configures a Queue.
type Option func(*Queue)

func WithLogger(l *slog.Logger) Option      { return func(q *Queue) { q.logger = l } }
func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }
func WithStaleGrace(d time.Duration) Option { return func(q *Queue) { q.staleGrace = d } }
func WithObserver(o Observer) Option        { return func(q *Queue) { q.observers = append(q.observers, o) } }

func WithStoreOptions(o ...jsonstore.Option) Option {
	return func(q *Queue) { q.storeOpts = append(q.storeOpts, o...) }
}

// New returns a Queue backed by dir/task_queue.json.
func New(dir string, opts ...Option) *Queue {
	q := &Queue{
		logger:     slog.Default(),
		now:        time.Now,
		staleGrace: defaultStaleGrace,
	}
	for _, opt := range opts {
		opt(q)
	}
	storeOpts := append([]jsonstore.Option{jsonstore.WithLogger(q.logger)}, q.storeOpts...)
	q.store = jsonstore.New(filepath.Join(dir, FileName), NewDocument, storeOpts...)
	return q
}

// Path returns the queue document path.
func (q *Queue) Path() string { return q.store.Path() }

// AddParams describes a new task. Zero Priority, Type and TimeoutSeconds take
// their defaults; MaxRetries is used as given.
type AddParams struct {
	Name           string
	Description    string
	Command        string
	Priority       domain.Priority
	Type           domain.TaskType
	TimeoutSeconds int
	MaxRetries     int
	Dependencies   []string
}

// DefaultAddParams returns params with every default filled in.
func DefaultAddParams(name string) AddParams {
	return AddParams{
		Name:           name,
		Priority:       domain.PriorityMedium,
		Type:           domain.TypeManual,
		TimeoutSeconds: DefaultTimeoutSeconds,
		MaxRetries:     DefaultMaxRetries,
	}
}

func (p *AddParams) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Command = strings.TrimSpace(p.Command)
	if p.Priority == "" {
		p.Priority = domain.PriorityMedium
	}
	if p.Type == "" {
		p.Type = domain.TypeManual
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = DefaultTimeoutSeconds
	}

	switch {
	case p.Name == "":
		return &domain.ValidationError{Field: "name", Reason: "is required"}
	case p.Priority.Rank() == 0:
		return &domain.ValidationError{Field: "priority", Value: string(p.Priority), Reason: "must be one of critical, high, medium, low"}
	case !p.Type.Valid():
		return &domain.ValidationError{Field: "task_type", Value: string(p.Type), Reason: "must be one of slash_command, autonomous, background, manual"}
	case p.TimeoutSeconds < 0:
		return &domain.ValidationError{Field: "timeout", Value: fmt.Sprint(p.TimeoutSeconds), Reason: "must be positive"}
	case p.MaxRetries < 0:
		return &domain.ValidationError{Field: "max_retries", Value: fmt.Sprint(p.MaxRetries), Reason: "must not be negative"}
	case p.Type.AutoExecutable() && p.Command == "":
		return &domain.ValidationError{Field: "command", Reason: fmt.Sprintf("is required for %s tasks", p.Type)}
	}

	deps := make([]string, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		if d = strings.TrimSpace(d); d != "" && !slices.Contains(deps, d) {
			deps = append(deps, d)
		}
	}
	sort.Strings(deps)
	p.Dependencies = deps
	return nil
}

// Add validates p and appends a new queued task.
func (q *Queue) Add(ctx context.Context, p AddParams) (*domain.Task, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}

	var created domain.Task
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		byID := index(doc.Tasks)
		for _, dep := range p.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, &domain.ValidationError{Field: "dependencies", Value: dep, Reason: "no such task"}
			}
		}

		now := q.now().UTC()
		id := domain.NewTaskID(now)
		for byID[id] != nil {
			id = domain.NewTaskID(now)
		}
		created = domain.Task{
			ID:             id,
			Name:           p.Name,
			Description:    p.Description,
			Command:        p.Command,
			Priority:       p.Priority,
			Type:           p.Type,
			Status:         domain.StatusQueued,
			TimeoutSeconds: p.TimeoutSeconds,
			MaxRetries:     p.MaxRetries,
			Dependencies:   p.Dependencies,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		doc.Tasks = append(doc.Tasks, created)
		return []domain.Task{created}, nil
	})
	if err != nil {
		return nil, err
	}
	telemetry.QueueTasksAdded.WithLabelValues(string(created.Priority), string(created.Type)).Inc()
	q.logger.Info("task added",
		slog.String("task_id", created.ID),
		slog.String("priority", string(created.Priority)),
		slog.String("task_type", string(created.Type)),
	)
	return &created, nil
}

// Get returns a copy of one task.
func (q *Queue) Get(ctx context.Context, id string) (*domain.Task, error) {
	doc, _, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == id {
			t := doc.Tasks[i]
			return &t, nil
		}
	}
	return nil, &domain.TaskNotFoundError{TaskID: id}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Status   domain.Status
	Priority domain.Priority
	Type     domain.TaskType
	Limit    int
}

func (f Filter) match(t *domain.Task) bool {
	return (f.Status == "" || t.Status == f.Status) &&
		(f.Priority == "" || t.Priority == f.Priority) &&
		(f.Type == "" || t.Type == f.Type)
}

// List returns matching tasks ordered by creation time.
func (q *Queue) List(ctx context.Context, f Filter) ([]domain.Task, error) {
	doc, _, err := q.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(doc.Tasks))
	for i := range doc.Tasks {
		if f.match(&doc.Tasks[i]) {
			out = append(out, doc.Tasks[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Cancel moves a non-terminal task to cancelled. A running task's process is
// not interrupted; its result is discarded when it reports back.
func (q *Queue) Cancel(ctx context.Context, id string) (*domain.Task, error) {
	var out domain.Task
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		t, err := find(doc, id)
		if err != nil {
			return nil, err
		}
		if t.Status.IsTerminal() {
			return nil, &domain.TaskAlreadyProcessedError{TaskID: id, Status: t.Status}
		}
		wasRunning := t.Status == domain.StatusRunning
		if err := t.TransitionTo(domain.StatusCancelled, q.now()); err != nil {
			return nil, err
		}
		if wasRunning {
			q.logger.Warn("cancelled a running task; its process keeps running until it exits or times out",
				slog.String("task_id", id))
		}
		out = *t
		return []domain.Task{out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Complete records that a task was finished outside the executor, which is
// how manual tasks leave the queue.
func (q *Queue) Complete(ctx context.Context, id, result string) (*domain.Task, error) {
	var out domain.Task
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		t, err := find(doc, id)
		if err != nil {
			return nil, err
		}
		if t.Status.IsTerminal() {
			return nil, &domain.TaskAlreadyProcessedError{TaskID: id, Status: t.Status}
		}
		if t.Status != domain.StatusRunning {
			if pending := pendingDependencies(index(doc.Tasks), t); len(pending) > 0 {
				return nil, &domain.DependencyUnsatisfiedError{TaskID: id, Pending: pending}
			}
			if err := t.TransitionTo(domain.StatusRunning, q.now()); err != nil {
				return nil, err
			}
		}
		if err := t.TransitionTo(domain.StatusCompleted, q.now()); err != nil {
			return nil, err
		}
		t.Result = result
		t.Error = ""
		out = *t
		return []domain.Task{out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Retry puts a failed task back in line. Without reset the task must have
// retry budget left; reset zeroes the counter and always requeues.
func (q *Queue) Retry(ctx context.Context, id string, reset bool) (*domain.Task, error) {
	var out domain.Task
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		t, err := find(doc, id)
		if err != nil {
			return nil, err
		}
		if err := q.retry(t, reset); err != nil {
			return nil, err
		}
		out = *t
		return []domain.Task{out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryFilter selects failed tasks for a batch retry.
type RetryFilter struct {
	Priority domain.Priority
	Type     domain.TaskType
	Reset    bool
}

// RetryResult lists what a batch retry did.
type RetryResult struct {
	Retried   []string `json:"retried"`
	Exhausted []string `json:"exhausted"`
}

// RetryMatching retries every failed task matching f. Tasks without budget
// are reported, not treated as errors.
func (q *Queue) RetryMatching(ctx context.Context, f RetryFilter) (RetryResult, error) {
	res := RetryResult{Retried: []string{}, Exhausted: []string{}}
	match := Filter{Status: domain.StatusFailed, Priority: f.Priority, Type: f.Type}
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		var changed []domain.Task
		for i := range doc.Tasks {
			t := &doc.Tasks[i]
			if !match.match(t) {
				continue
			}
			err := q.retry(t, f.Reset)
			var exhausted *domain.RetryExhaustedError
			switch {
			case errors.As(err, &exhausted):
				res.Exhausted = append(res.Exhausted, t.ID)
			case err != nil:
				return nil, err
			default:
				res.Retried = append(res.Retried, t.ID)
				changed = append(changed, *t)
			}
		}
		return changed, nil
	})
	return res, err
}

func (q *Queue) retry(t *domain.Task, reset bool) error {
	if t.Status != domain.StatusFailed {
		return &domain.InvalidTransitionError{TaskID: t.ID, From: t.Status, To: domain.StatusRetrying}
	}
	if reset {
		t.CurrentRetry = 0
	} else if t.CurrentRetry >= t.MaxRetries {
		return &domain.RetryExhaustedError{TaskID: t.ID, MaxRetries: t.MaxRetries}
	}
	return t.TransitionTo(domain.StatusRetrying, q.now())
}

// Claim marks the next eligible task running and returns it, or nil when
// nothing can run. It fails with domain.ErrQueueBusy while another task is
// running, unless that task outlived its timeout, in which case it is
// charged a failed attempt first.
func (q *Queue) Claim(ctx context.Context) (*domain.Task, error) {
	return q.claim(ctx, func(doc *Document) (*domain.Task, error) {
		i := selectNext(doc.Tasks)
		if i < 0 {
			return nil, nil
		}
		return &doc.Tasks[i], nil
	})
}

// ClaimByID force-selects one task regardless of priority. Dependencies
// still apply.
func (q *Queue) ClaimByID(ctx context.Context, id string) (*domain.Task, error) {
	return q.claim(ctx, func(doc *Document) (*domain.Task, error) {
		t, err := find(doc, id)
		if err != nil {
			return nil, err
		}
		if t.Status.IsTerminal() {
			return nil, &domain.TaskAlreadyProcessedError{TaskID: id, Status: t.Status}
		}
		if !t.Status.IsRunnable() {
			return nil, &domain.InvalidTransitionError{TaskID: id, From: t.Status, To: domain.StatusRunning}
		}
		if !t.Type.AutoExecutable() {
			return nil, &domain.ValidationError{Field: "task_type", Value: string(t.Type), Reason: "manual tasks are completed with 'complete', not executed"}
		}
		if pending := pendingDependencies(index(doc.Tasks), t); len(pending) > 0 {
			return nil, &domain.DependencyUnsatisfiedError{TaskID: id, Pending: pending}
		}
		return t, nil
	})
}

func (q *Queue) claim(ctx context.Context, pick func(doc *Document) (*domain.Task, error)) (*domain.Task, error) {
	var out *domain.Task
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		now := q.now()
		var changed []domain.Task
		for i := range doc.Tasks {
			t := &doc.Tasks[i]
			if t.Status != domain.StatusRunning {
				continue
			}
			if !q.stale(t, now) {
				return nil, fmt.Errorf("%w: %s", domain.ErrQueueBusy, t.ID)
			}
			q.logger.Warn("reclaiming abandoned task", slog.String("task_id", t.ID))
			if err := recordFailure(t, "abandoned: runner exited without reporting a result", now); err != nil {
				return nil, err
			}
			changed = append(changed, *t)
		}

		t, err := pick(doc)
		if err != nil || t == nil {
			return changed, err
		}
		if err := t.TransitionTo(domain.StatusRunning, now); err != nil {
			return nil, err
		}
		claimed := *t
		out = &claimed
		return append(changed, claimed), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queue) stale(t *domain.Task, now time.Time) bool {
	if t.StartedAt == nil {
		return true
	}
	return now.Sub(*t.StartedAt) > t.Timeout()+q.staleGrace
}

// Outcome is what running a task produced.
type Outcome struct {
	Err      error
	Output   string
	ExitCode *int
}

// Finish records the outcome of a claimed task. Success completes it; a
// failure either spends one retry or fails it for good. A task cancelled
// while it ran stays cancelled.
func (q *Queue) Finish(ctx context.Context, id string, o Outcome) (*domain.Task, error) {
	var out domain.Task
	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		t, err := find(doc, id)
		if err != nil {
			return nil, err
		}
		if t.Status != domain.StatusRunning {
			q.logger.Info("discarding result of task no longer running",
				slog.String("task_id", id),
				slog.String("status", string(t.Status)),
			)
			out = *t
			return nil, nil
		}
		t.ExitCode = o.ExitCode
		t.Result = o.Output
		if o.Err == nil {
			t.Error = ""
			if err := t.TransitionTo(domain.StatusCompleted, q.now()); err != nil {
				return nil, err
			}
		} else if err := recordFailure(t, o.Err.Error(), q.now()); err != nil {
			return nil, err
		}
		out = *t
		return []domain.Task{out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// recordFailure charges one failed attempt to a running task.
func recordFailure(t *domain.Task, msg string, now time.Time) error {
	t.Error = msg
	if t.CurrentRetry < t.MaxRetries {
		t.CurrentRetry++
		return t.TransitionTo(domain.StatusRetrying, now)
	}
	return t.TransitionTo(domain.StatusFailed, now)
}

func find(doc *Document, id string) (*domain.Task, error) {
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == id {
			return &doc.Tasks[i], nil
		}
	}
	return nil, &domain.TaskNotFoundError{TaskID: id}
}

// update runs fn under the document lock and notifies observers of the
// tasks fn reports as changed once the document is saved.
func (q *Queue) update(ctx context.Context, fn func(doc *Document) ([]domain.Task, error)) error {
	var changed []domain.Task
	_, err := q.store.Update(ctx, func(doc *Document) error {
		if doc.Tasks == nil {
			doc.Tasks = []domain.Task{}
		}
		var err error
		changed, err = fn(doc)
		return err
	})
	if err != nil {
		return err
	}
	for _, t := range changed {
		for _, o := range q.observers {
			o.Observe(ctx, t)
		}
	}
	return nil
}

// Repair moves the current document aside and starts an empty queue.
func (q *Queue) Repair(ctx context.Context) (string, error) {
	backup, err := q.store.Reset(ctx)
	if err != nil {
		return "", err
	}
	q.logger.Warn("queue reset", slog.String("path", q.Path()), slog.String("backup", backup))
	return backup, nil
}
