package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

// Mirror copies every task change into a StateStore. It satisfies
// queue.Observer; Redis errors are logged and never fail a queue operation.
type Mirror struct {
	store   StateStore
	timeout time.Duration
	logger  *slog.Logger
}

// NewMirror wraps store. A nil logger falls back to slog.Default().
func NewMirror(store StateStore, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{store: store, timeout: 2 * time.Second, logger: logger}
}

func (m *Mirror) Observe(ctx context.Context, task domain.Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := m.store.SetTask(ctx, &task); err != nil {
		m.logger.Warn("redis mirror failed",
			slog.String("task_id", task.ID),
			slog.String("status", string(task.Status)),
			slog.String("error", err.Error()),
		)
	}
}
