package queue

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

// ClearParams selects terminal tasks to delete.
type ClearParams struct {
	// OlderThan is the minimum age since the task finished.
	OlderThan time.Duration
	// Statuses restricts cleanup to these terminal statuses; empty means all.
	Statuses []domain.Status
	// KeepRecent tasks per status survive regardless of age.
	KeepRecent int
	// DryRun reports without writing.
	DryRun bool
}

// ClearResult lists what Clear removed (or would remove).
type ClearResult struct {
	Removed   []domain.Task `json:"removed"`
	Remaining int           `json:"remaining"`
	DryRun    bool          `json:"dry_run"`
}

var terminalStatuses = []domain.Status{domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled}

// Clear deletes old terminal tasks. Non-terminal tasks, the newest
// KeepRecent tasks of each status, and tasks that an unfinished task
// depends on are never removed.
func (q *Queue) Clear(ctx context.Context, p ClearParams) (ClearResult, error) {
	if len(p.Statuses) == 0 {
		p.Statuses = terminalStatuses
	}
	p.Statuses = slices.Compact(slices.Sorted(slices.Values(p.Statuses)))
	for _, st := range p.Statuses {
		if !st.IsTerminal() {
			return ClearResult{}, &domain.ValidationError{Field: "status", Value: string(st), Reason: "only completed, failed and cancelled tasks can be cleared"}
		}
	}
	if p.KeepRecent < 0 || p.OlderThan < 0 {
		return ClearResult{}, &domain.ValidationError{Field: "clear", Reason: "older-than and keep-recent must not be negative"}
	}

	res := ClearResult{Removed: []domain.Task{}, DryRun: p.DryRun}
	if p.DryRun {
		doc, _, err := q.store.Load(ctx)
		if err != nil {
			return res, err
		}
		res.Removed, res.Remaining = planClear(doc.Tasks, p, q.now())
		return res, nil
	}

	err := q.update(ctx, func(doc *Document) ([]domain.Task, error) {
		removed, _ := planClear(doc.Tasks, p, q.now())
		doc.Tasks = slices.DeleteFunc(doc.Tasks, func(t domain.Task) bool {
			return slices.ContainsFunc(removed, func(r domain.Task) bool { return r.ID == t.ID })
		})
		res.Removed = removed
		res.Remaining = len(doc.Tasks)
		return nil, nil
	})
	if err != nil {
		return res, err
	}
	telemetry.QueueTasksCleared.Add(float64(len(res.Removed)))
	q.logger.Info("queue cleared", slog.Int("removed", len(res.Removed)), slog.Int("remaining", res.Remaining))
	return res, nil
}

func planClear(tasks []domain.Task, p ClearParams, now time.Time) (removed []domain.Task, remaining int) {
	protected := make(map[string]bool)
	for i := range tasks {
		if !tasks[i].Status.IsTerminal() {
			for _, dep := range tasks[i].Dependencies {
				protected[dep] = true
			}
		}
	}

	cutoff := now.Add(-p.OlderThan)
	removed = []domain.Task{}
	for _, st := range p.Statuses {
		var group []domain.Task
		for i := range tasks {
			if tasks[i].Status == st {
				group = append(group, tasks[i])
			}
		}
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i].FinishedAt(), group[j].FinishedAt()
			if !a.Equal(b) {
				return a.After(b)
			}
			return group[i].ID > group[j].ID
		})
		for i := range group {
			t := &group[i]
			if i < p.KeepRecent || protected[t.ID] || !t.FinishedAt().Before(cutoff) {
				continue
			}
			removed = append(removed, *t)
		}
	}
	return removed, len(tasks) - len(removed)
}
