package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrQueueBusy is returned when a claim is attempted while another task is running.
var ErrQueueBusy = errors.New("another task is already running")

// ValidationError is returned when a parameter is missing or outside its enumerated set.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// TaskNotFoundError is returned when a task ID does not exist.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// TaskAlreadyProcessedError is returned when an operation targets a task that is already terminal.
type TaskAlreadyProcessedError struct {
	TaskID string
	Status Status
}

func (e *TaskAlreadyProcessedError) Error() string {
	return fmt.Sprintf("task %s already processed with status %s", e.TaskID, e.Status)
}

// InvalidTransitionError is returned when the state machine forbids a move.
type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s cannot move from %s to %s", e.TaskID, e.From, e.To)
}

// DependencyUnsatisfiedError is returned when a task is forced to run before
// its dependencies completed.
type DependencyUnsatisfiedError struct {
	TaskID  string
	Pending []string
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("task %s has unfinished dependencies: %s", e.TaskID, strings.Join(e.Pending, ", "))
}

// RetryExhaustedError is returned when a failed task has no retry budget left.
type RetryExhaustedError struct {
	TaskID     string
	MaxRetries int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("task %s used all %d retries (pass --reset to start over)", e.TaskID, e.MaxRetries)
}

// SubprocessTimeoutError is returned when a task command outlives its timeout.
type SubprocessTimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *SubprocessTimeoutError) Error() string {
	return fmt.Sprintf("task %s timed out after %s", e.TaskID, e.Timeout)
}

// StorageCorruptionError describes a document that could not be parsed.
// It is reported, never returned from a load.
type StorageCorruptionError struct {
	Path string
	Err  error
}

func (e *StorageCorruptionError) Error() string {
	return fmt.Sprintf("corrupt document %s: %v", e.Path, e.Err)
}

func (e *StorageCorruptionError) Unwrap() error { return e.Err }

// LockUnavailableError describes a lock that could not be taken; the
// operation went ahead unlocked.
type LockUnavailableError struct {
	Path string
	Err  error
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("lock unavailable on %s: %v", e.Path, e.Err)
}

func (e *LockUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTaskTypeError is returned when no handler is registered for a task type.
type InvalidTaskTypeError struct {
	TaskType TaskType
}

func (e *InvalidTaskTypeError) Error() string {
	return fmt.Sprintf("no handler registered for task type %q", e.TaskType)
}
