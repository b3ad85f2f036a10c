package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

func TestStatusConstants(t *testing.T) {
	tests := []struct {
		status domain.Status
		want   string
	}{
		{domain.StatusQueued, "queued"},
		{domain.StatusRunning, "running"},
		{domain.StatusRetrying, "retrying"},
		{domain.StatusCompleted, "completed"},
		{domain.StatusFailed, "failed"},
		{domain.StatusCancelled, "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.status) != tt.want {
				t.Errorf("Status value = %q, want %q", tt.status, tt.want)
			}
		})
	}
}

func TestIsTerminal_TerminalStates(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled} {
		t.Run(string(s), func(t *testing.T) {
			if !s.IsTerminal() {
				t.Errorf("IsTerminal(%q) = false, want true", s)
			}
		})
	}
}

func TestIsTerminal_NonTerminalStates(t *testing.T) {
	for _, s := range []domain.Status{domain.StatusQueued, domain.StatusRunning, domain.StatusRetrying} {
		t.Run(string(s), func(t *testing.T) {
			if s.IsTerminal() {
				t.Errorf("IsTerminal(%q) = true, want false", s)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := domain.ParsePriority(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, p)

	_, err = domain.ParsePriority("urgent")
	require.Error(t, err)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "priority", ve.Field)
}

func TestPriorityRank_Ordering(t *testing.T) {
	for i := 1; i < len(domain.Priorities); i++ {
		assert.Greater(t, domain.Priorities[i-1].Rank(), domain.Priorities[i].Rank())
	}
	assert.Zero(t, domain.Priority("bogus").Rank())
}

func TestParseTaskType(t *testing.T) {
	tt, err := domain.ParseTaskType("slash_command")
	require.NoError(t, err)
	assert.True(t, tt.AutoExecutable())

	tt, err = domain.ParseTaskType("manual")
	require.NoError(t, err)
	assert.False(t, tt.AutoExecutable())

	_, err = domain.ParseTaskType("cron")
	assert.True(t, domain.IsValidation(err))
}

func TestParseStatus_Invalid(t *testing.T) {
	_, err := domain.ParseStatus("done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queued")
}

func TestCanTransition(t *testing.T) {
	allowed := map[domain.Status][]domain.Status{
		domain.StatusQueued:    {domain.StatusRunning, domain.StatusCancelled},
		domain.StatusRunning:   {domain.StatusCompleted, domain.StatusRetrying, domain.StatusFailed, domain.StatusCancelled},
		domain.StatusRetrying:  {domain.StatusRunning, domain.StatusCancelled},
		domain.StatusFailed:    {domain.StatusRetrying},
		domain.StatusCompleted: nil,
		domain.StatusCancelled: nil,
	}
	for _, from := range domain.Statuses {
		for _, to := range domain.Statuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, domain.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransitionTo_StampsTimes(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	task := &domain.Task{ID: "t1", Status: domain.StatusQueued}

	require.NoError(t, task.TransitionTo(domain.StatusRunning, now))
	require.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	require.NoError(t, task.TransitionTo(domain.StatusCompleted, now.Add(time.Minute)))
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, now.Add(time.Minute), *task.CompletedAt)
	assert.Equal(t, now.Add(time.Minute), task.FinishedAt())

	err := task.TransitionTo(domain.StatusRunning, now)
	var ite *domain.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, domain.StatusCompleted, ite.From)
}

func TestNewTaskID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := domain.NewTaskID(now)
		assert.True(t, strings.HasPrefix(id, "task_"))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
