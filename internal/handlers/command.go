package handlers

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

const defaultMaxOutput = 8 << 10

// CommandHandler runs a task's command through the system shell.
type CommandHandler struct {
	taskType  domain.TaskType
	shell     []string
	prefix    string
	dir       string
	maxOutput int
	waitDelay time.Duration
}

// CommandOption configures a CommandHandler.
type CommandOption func(*CommandHandler)

// WithShell replaces the shell invocation, e.g. []string{"bash", "-c"}.
func WithShell(argv ...string) CommandOption {
	return func(h *CommandHandler) { h.shell = argv }
}

// WithPrefix runs commands starting with "/" as `<prefix> "<command>"`,
// which is how slash commands reach the host CLI.
func WithPrefix(prefix string) CommandOption {
	return func(h *CommandHandler) { h.prefix = strings.TrimSpace(prefix) }
}

// WithDir sets the working directory of spawned commands.
func WithDir(dir string) CommandOption { return func(h *CommandHandler) { h.dir = dir } }

// WithMaxOutput bounds how much trailing output is kept per run.
func WithMaxOutput(n int) CommandOption { return func(h *CommandHandler) { h.maxOutput = n } }

// NewCommandHandler returns a handler for tasks of type t.
func NewCommandHandler(t domain.TaskType, opts ...CommandOption) *CommandHandler {
	h := &CommandHandler{
		taskType:  t,
		shell:     defaultShell,
		maxOutput: defaultMaxOutput,
		waitDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *CommandHandler) TaskType() domain.TaskType { return h.taskType }

// Handle runs the command and waits at most the task's timeout. On timeout
// the whole process tree is killed and a SubprocessTimeoutError returned.
func (h *CommandHandler) Handle(ctx context.Context, task *domain.Task) (Result, error) {
	ctx, span := otel.Tracer("taskqueue").Start(ctx, "handler.command")
	defer span.End()

	line := h.commandLine(task.Command)
	if line == "" {
		err := &domain.ValidationError{Field: "command", Reason: "task has no command to run"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty command")
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.type", string(task.Type)),
		attribute.Int("task.timeout_seconds", task.TimeoutSeconds),
	)

	execCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	args := append(append([]string{}, h.shell[1:]...), line)
	cmd := exec.CommandContext(execCtx, h.shell[0], args...)
	cmd.Dir = h.dir
	out := &tailBuffer{max: h.maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = h.waitDelay
	configureProcess(cmd)

	err := cmd.Run()
	res := Result{Output: out.String()}
	if cmd.ProcessState != nil {
		code := cmd.ProcessState.ExitCode()
		res.ExitCode = &code
		span.SetAttributes(attribute.Int("process.exit_code", code))
	}

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		err = &domain.SubprocessTimeoutError{TaskID: task.ID, Timeout: task.Timeout()}
	case err != nil:
		err = fmt.Errorf("command %q: %w", line, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
	}
	return res, err
}

func (h *CommandHandler) commandLine(command string) string {
	command = strings.TrimSpace(command)
	if h.prefix != "" && strings.HasPrefix(command, "/") {
		return h.prefix + " " + strconv.Quote(command)
	}
	return command
}

// tailBuffer keeps the last max bytes written to it. exec.Cmd serialises
// writes when Stdout and Stderr are the same writer.
type tailBuffer struct {
	max       int
	buf       []byte
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if b.max > 0 && len(b.buf) > b.max {
		b.buf = append(b.buf[:0], b.buf[len(b.buf)-b.max:]...)
		b.truncated = true
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	s := strings.TrimRight(string(b.buf), "\n")
	if b.truncated {
		return "…" + s
	}
	return s
}
