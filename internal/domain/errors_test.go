package domain_test

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

func TestTaskNotFoundError(t *testing.T) {
	err := &domain.TaskNotFoundError{TaskID: "abc-123"}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("error message should contain task ID, got: %q", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := &domain.ValidationError{Field: "priority", Value: "urgent", Reason: "must be one of critical, high, medium, low"}
	msg := err.Error()
	if !strings.Contains(msg, "priority") || !strings.Contains(msg, "urgent") {
		t.Errorf("error message should contain field and value, got: %q", msg)
	}
	empty := &domain.ValidationError{Field: "name", Reason: "required"}
	if strings.Contains(empty.Error(), `""`) {
		t.Errorf("empty value should not be quoted, got: %q", empty.Error())
	}
}

func TestTaskAlreadyProcessedError(t *testing.T) {
	err := &domain.TaskAlreadyProcessedError{TaskID: "xyz-789", Status: domain.StatusCompleted}
	msg := err.Error()
	if !strings.Contains(msg, "xyz-789") {
		t.Errorf("error message should contain task ID, got: %q", msg)
	}
	if !strings.Contains(msg, "completed") {
		t.Errorf("error message should contain status, got: %q", msg)
	}
}

func TestDependencyUnsatisfiedError(t *testing.T) {
	err := &domain.DependencyUnsatisfiedError{TaskID: "b", Pending: []string{"a1", "a2"}}
	if !strings.Contains(err.Error(), "a1, a2") {
		t.Errorf("error message should list pending dependencies, got: %q", err.Error())
	}
}

func TestSubprocessTimeoutError(t *testing.T) {
	err := &domain.SubprocessTimeoutError{TaskID: "t", Timeout: 3 * time.Second}
	if !strings.Contains(err.Error(), "3s") {
		t.Errorf("error message should contain timeout, got: %q", err.Error())
	}
}

func TestWrappedErrorsUnwrap(t *testing.T) {
	corrupt := &domain.StorageCorruptionError{Path: "q.json", Err: fs.ErrInvalid}
	if !errors.Is(corrupt, fs.ErrInvalid) {
		t.Error("StorageCorruptionError should unwrap to its cause")
	}
	lock := &domain.LockUnavailableError{Path: "q.json", Err: fs.ErrPermission}
	if !errors.Is(lock, fs.ErrPermission) {
		t.Error("LockUnavailableError should unwrap to its cause")
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	// Compile-time interface checks via assignment to error variables.
	var _ error = &domain.ValidationError{}
	var _ error = &domain.TaskNotFoundError{}
	var _ error = &domain.InvalidTaskTypeError{}
	var _ error = &domain.TaskAlreadyProcessedError{}
	var _ error = &domain.InvalidTransitionError{}
	var _ error = &domain.DependencyUnsatisfiedError{}
	var _ error = &domain.RetryExhaustedError{}
	var _ error = &domain.SubprocessTimeoutError{}
	var _ error = &domain.StorageCorruptionError{}
	var _ error = &domain.LockUnavailableError{}
}
