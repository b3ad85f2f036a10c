package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the states a task can be in.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusQueued, StatusRunning, StatusRetrying,
	StatusCompleted, StatusFailed, StatusCancelled,
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Value: s, Reason: "must be one of " + joinStatuses(Statuses)}
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusRetrying, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further automatic transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	case StatusQueued, StatusRunning, StatusRetrying:
		return false
	}
	return false
}

// IsRunnable reports whether the scheduler may pick a task in this status.
func (s Status) IsRunnable() bool {
	return s == StatusQueued || s == StatusRetrying
}

// CanTransition reports whether the state machine allows from → to.
// failed → retrying is only reachable through an explicit retry request.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusRetrying || to == StatusFailed || to == StatusCancelled
	case StatusRetrying:
		return to == StatusRunning || to == StatusCancelled
	case StatusFailed:
		return to == StatusRetrying
	case StatusCompleted, StatusCancelled:
		return false
	}
	return false
}

// Priority orders tasks for scheduling.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority converts user input into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Rank() == 0 {
		return "", &ValidationError{Field: "priority", Value: s, Reason: "must be one of critical, high, medium, low"}
	}
	return p, nil
}

// Rank maps a priority to its scheduling rank; higher runs first.
// Unknown priorities rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// TaskType says how a task gets executed.
type TaskType string

const (
	TypeSlashCommand TaskType = "slash_command"
	TypeAutonomous   TaskType = "autonomous"
	TypeBackground   TaskType = "background"
	TypeManual       TaskType = "manual"
)

// TaskTypes lists every task type.
var TaskTypes = []TaskType{TypeSlashCommand, TypeAutonomous, TypeBackground, TypeManual}

// ParseTaskType converts user input into a TaskType.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "task_type", Value: s, Reason: "must be one of slash_command, autonomous, background, manual"}
	}
	return t, nil
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	switch t {
	case TypeSlashCommand, TypeAutonomous, TypeBackground, TypeManual:
		return true
	}
	return false
}

// AutoExecutable reports whether the executor may run tasks of this type.
// Manual tasks wait for someone to complete them.
func (t TaskType) AutoExecutable() bool {
	switch t {
	case TypeSlashCommand, TypeAutonomous, TypeBackground:
		return true
	case TypeManual:
		return false
	}
	return false
}

// Task is a unit of queued work.
type Task struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Command        string     `json:"command,omitempty"`
	Priority       Priority   `json:"priority"`
	Type           TaskType   `json:"task_type"`
	Status         Status     `json:"status"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	MaxRetries     int        `json:"max_retries"`
	CurrentRetry   int        `json:"current_retry"`
	Dependencies   []string   `json:"dependencies"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ExitCode       *int       `json:"exit_code,omitempty"`
	Result         string     `json:"result,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// NewTaskID returns an id made of the creation timestamp and a random suffix.
func NewTaskID(now time.Time) string {
	return fmt.Sprintf("task_%s_%s", now.UTC().Format("20060102_150405"), uuid.New().String()[:8])
}

// Timeout returns the hard execution bound.
func (t *Task) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// DependsOn reports whether id is one of the task's dependencies.
func (t *Task) DependsOn(id string) bool {
	return slices.Contains(t.Dependencies, id)
}

// FinishedAt is the time used for age-based cleanup.
func (t *Task) FinishedAt() time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}

// TransitionTo moves the task to a new status, stamping the timestamps the
// state machine implies.
func (t *Task) TransitionTo(to Status, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, To: to}
	}
	now = now.UTC()
	switch to {
	case StatusRunning:
		t.StartedAt = &now
		t.CompletedAt = nil
	case StatusCompleted, StatusFailed, StatusCancelled:
		t.CompletedAt = &now
	case StatusRetrying:
		t.CompletedAt = nil
	case StatusQueued:
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

func joinStatuses(ss []Status) string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return strings.Join(out, ", ")
}
