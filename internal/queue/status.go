package queue

import (
	"context"
	"math"
	"time"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/pkg/telemetry"
)

// Summary is the queue overview returned by Status.
type Summary struct {
	Total               int                   `json:"total"`
	Counts              map[domain.Status]int `json:"counts"`
	Running             *domain.Task          `json:"running,omitempty"`
	Ready               int                   `json:"ready"`
	Blocked             []string              `json:"blocked,omitempty"`
	OldestQueuedSeconds float64               `json:"oldest_queued_seconds"`
	HealthScore         int                   `json:"health_score"`
	Recovered           bool                  `json:"recovered"`
	Warnings            []string              `json:"warnings,omitempty"`
}

// Status summarises the queue. A corrupt document yields an empty summary
// with Recovered set rather than an error.
func (q *Queue) Status(ctx context.Context) (Summary, error) {
	doc, rep, err := q.store.Load(ctx)
	if err != nil {
		return Summary{}, err
	}
	s := summarize(doc.Tasks, q.now())
	s.Recovered = rep.Recovered()
	s.Warnings = rep.Warnings()
	for st, n := range s.Counts {
		telemetry.QueueTasks.WithLabelValues(string(st)).Set(float64(n))
	}
	telemetry.QueueHealthScore.Set(float64(s.HealthScore))
	return s, nil
}

func summarize(tasks []domain.Task, now time.Time) Summary {
	s := Summary{
		Total:  len(tasks),
		Counts: make(map[domain.Status]int, len(domain.Statuses)),
	}
	for _, st := range domain.Statuses {
		s.Counts[st] = 0
	}

	var oldest time.Duration
	for i := range tasks {
		t := &tasks[i]
		s.Counts[t.Status]++
		if t.Status == domain.StatusRunning && s.Running == nil {
			running := *t
			s.Running = &running
		}
		if t.Status.IsRunnable() {
			if age := now.Sub(t.CreatedAt); age > oldest {
				oldest = age
			}
		}
	}

	ready, blocked := Plan(tasks)
	s.Ready = len(ready)
	s.Blocked = blocked
	s.OldestQueuedSeconds = oldest.Seconds()
	s.HealthScore = HealthScore(s.Counts, s.Total, oldest)
	return s
}

// HealthScore maps queue state to 0–100:
//
//	70 × (1 − failed/total) + 30 × (completed/total) − min(20, oldest queued age in hours)
//
// An empty queue scores 100.
func HealthScore(counts map[domain.Status]int, total int, oldestQueued time.Duration) int {
	if total == 0 {
		return 100
	}
	failed := float64(counts[domain.StatusFailed]) / float64(total)
	completed := float64(counts[domain.StatusCompleted]) / float64(total)
	penalty := math.Min(20, oldestQueued.Hours())

	score := 70*(1-failed) + 30*completed - penalty
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
