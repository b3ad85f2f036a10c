package taskqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

// ── mocks ────────────────────────────────────────────────────────────────────

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Execute(context.Context) (Report, error) {
	r.calls.Add(1)
	return Report{}, r.err
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestNewScheduler_RejectsBadCronExpression(t *testing.T) {
	_, err := NewScheduler(&countingRunner{}, "every minute please", discardLogger())
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestScheduler_RunsOnScheduleUntilCancelled(t *testing.T) {
	for name, runErr := range map[string]error{"ok": nil, "busy": domain.ErrQueueBusy} {
		t.Run(name, func(t *testing.T) {
			runner := &countingRunner{err: runErr}
			s, err := NewScheduler(runner, "@every 1s", discardLogger())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()

			assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("scheduler did not stop")
			}
		})
	}
}
