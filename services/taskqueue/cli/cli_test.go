package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/queue"
	"github.com/ramiqadoumi/go-task-queue/services/taskqueue"
)

func TestForegroundArgs(t *testing.T) {
	in := []string{"execute", "--background", "--stop-on-error", "--background=true", "--dir", "x"}
	assert.Equal(t, []string{"execute", "--stop-on-error", "--dir", "x"}, foregroundArgs(in))
	assert.Len(t, in, 6, "input is not modified")
}

func TestWriteTasks(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	tasks := []domain.Task{{
		ID: "task_1", Name: "lint", Status: domain.StatusQueued, Priority: domain.PriorityHigh,
		Type: domain.TypeBackground, MaxRetries: 3, CreatedAt: now.Add(-2 * time.Hour),
	}}

	var buf bytes.Buffer
	require.NoError(t, writeTasks(&buf, tasks, now))
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "task_1")
	assert.Contains(t, out, "0/3")
	assert.Contains(t, out, "2 hours ago")

	buf.Reset()
	require.NoError(t, writeTasks(&buf, nil, now))
	assert.Equal(t, "no tasks\n", buf.String())
}

func TestWriteSummary(t *testing.T) {
	s := queue.Summary{
		Total:       2,
		Counts:      map[domain.Status]int{domain.StatusQueued: 1, domain.StatusFailed: 1},
		Blocked:     []string{"task_b"},
		HealthScore: 35,
		Warnings:    []string{"corrupt document"},
	}
	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "health:")
	assert.Contains(t, out, "35/100")
	assert.Contains(t, out, "task_b")
	assert.Contains(t, out, "corrupt document")
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, taskqueue.Report{}))
	assert.Contains(t, buf.String(), "nothing to run")

	buf.Reset()
	require.NoError(t, writeReport(&buf, taskqueue.Report{
		Runs:      []taskqueue.Run{{TaskID: "task_1", Name: "lint", Attempt: 1, Status: domain.StatusCompleted, DurationMs: 1500}},
		Executed:  1,
		Completed: 1,
		Stopped:   "interrupted",
	}))
	out := buf.String()
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "1 run(s): 1 completed")
	assert.Contains(t, out, "stopped: interrupted")
}
