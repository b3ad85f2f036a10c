package handlers

import (
	"context"
	"sync"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

// Result is what a handler observed while running a task.
type Result struct {
	Output   string
	ExitCode *int
}

// Handler executes tasks of one type.
type Handler interface {
	Handle(ctx context.Context, task *domain.Task) (Result, error)
	TaskType() domain.TaskType
}

// Registry maps task types to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.TaskType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.TaskType]Handler)}
}

// Register adds a handler. Safe to call concurrently.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.TaskType()] = h
}

// Get returns the handler for the given task type.
// Returns InvalidTaskTypeError if not registered.
func (r *Registry) Get(taskType domain.TaskType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	if !ok {
		return nil, &domain.InvalidTaskTypeError{TaskType: taskType}
	}
	return h, nil
}
