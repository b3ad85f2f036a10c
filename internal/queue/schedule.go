package queue

import (
	"sort"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

// pendingDependencies returns the dependency ids of t that are not completed.
// Unknown ids count as pending.
func pendingDependencies(byID map[string]*domain.Task, t *domain.Task) []string {
	var pending []string
	for _, dep := range t.Dependencies {
		d, ok := byID[dep]
		if !ok || d.Status != domain.StatusCompleted {
			pending = append(pending, dep)
		}
	}
	return pending
}

func index(tasks []domain.Task) map[string]*domain.Task {
	byID := make(map[string]*domain.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}
	return byID
}

// before orders two runnable tasks: higher rank first, retrying tasks at the
// front of their band, then FIFO by creation time, then id.
func before(a, b *domain.Task) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra > rb
	}
	if ar, br := a.Status == domain.StatusRetrying, b.Status == domain.StatusRetrying; ar != br {
		return ar
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Plan returns the indices of tasks the executor may run, in run order, and
// the ids of runnable tasks held back by dependencies.
func Plan(tasks []domain.Task) (ready []int, blocked []string) {
	byID := index(tasks)
	for i := range tasks {
		t := &tasks[i]
		if !t.Status.IsRunnable() || !t.Type.AutoExecutable() {
			continue
		}
		if len(pendingDependencies(byID, t)) > 0 {
			blocked = append(blocked, t.ID)
			continue
		}
		ready = append(ready, i)
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return before(&tasks[ready[i]], &tasks[ready[j]])
	})
	return ready, blocked
}

// selectNext returns the index of the next task to run, or -1.
func selectNext(tasks []domain.Task) int {
	ready, _ := Plan(tasks)
	if len(ready) == 0 {
		return -1
	}
	return ready[0]
}
