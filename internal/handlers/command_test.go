//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package handlers_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/handlers"
)

func shellTask(command string, timeoutSeconds int) *domain.Task {
	return &domain.Task{
		ID:             "task_test",
		Type:           domain.TypeBackground,
		Command:        command,
		TimeoutSeconds: timeoutSeconds,
	}
}

func TestCommandHandler_TaskType(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeAutonomous)
	assert.Equal(t, domain.TypeAutonomous, h.TaskType())
}

func TestCommandHandler_Success(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeBackground)

	res, err := h.Handle(context.Background(), shellTask("echo hello; echo oops >&2", 10))
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, "oops")
}

func TestCommandHandler_NonZeroExit(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeBackground)

	res, err := h.Handle(context.Background(), shellTask("echo broken; exit 3", 10))
	require.Error(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 3, *res.ExitCode)
	assert.Contains(t, res.Output, "broken")

	var timeout *domain.SubprocessTimeoutError
	assert.False(t, errors.As(err, &timeout))
}

func TestCommandHandler_Timeout_KillsProcessTree(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeBackground)

	start := time.Now()
	_, err := h.Handle(context.Background(), shellTask("sleep 30 & sleep 30; wait", 1))
	require.Error(t, err)

	var timeout *domain.SubprocessTimeoutError
	require.True(t, errors.As(err, &timeout), "expected SubprocessTimeoutError, got %T", err)
	assert.Equal(t, time.Second, timeout.Timeout)
	assert.Less(t, time.Since(start), 10*time.Second, "children must not keep the run alive")
}

func TestCommandHandler_ParentCancellation(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeBackground)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Handle(ctx, shellTask("sleep 5", 10))
	require.Error(t, err)

	var timeout *domain.SubprocessTimeoutError
	assert.False(t, errors.As(err, &timeout), "cancellation is not a timeout")
}

func TestCommandHandler_EmptyCommand(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeBackground)

	_, err := h.Handle(context.Background(), shellTask("   ", 10))
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestCommandHandler_SlashPrefix(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeSlashCommand, handlers.WithPrefix("echo ran:"))

	res, err := h.Handle(context.Background(), shellTask("/learn --fast", 10))
	require.NoError(t, err)
	assert.Equal(t, "ran: /learn --fast", res.Output)

	// Plain commands are not prefixed.
	res, err = h.Handle(context.Background(), shellTask("echo plain", 10))
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Output)
}

func TestCommandHandler_OutputKeepsTail(t *testing.T) {
	h := handlers.NewCommandHandler(domain.TypeBackground, handlers.WithMaxOutput(16))

	res, err := h.Handle(context.Background(), shellTask("echo "+strings.Repeat("a", 64)+"; echo END", 10))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, "…"))
	assert.True(t, strings.HasSuffix(res.Output, "END"))
	assert.LessOrEqual(t, len(strings.TrimPrefix(res.Output, "…")), 16)
}

func TestCommandHandler_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	h := handlers.NewCommandHandler(domain.TypeBackground, handlers.WithDir(dir))

	res, err := h.Handle(context.Background(), shellTask("pwd", 10))
	require.NoError(t, err)
	assert.Contains(t, res.Output, strings.TrimPrefix(dir, "/private"))
}
