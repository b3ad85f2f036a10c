package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
)

// Runner drains the queue once.
type Runner interface {
	Execute(ctx context.Context) (Report, error)
}

// Scheduler drains the queue on a cron schedule. A tick that fires while the
// previous drain is still running is skipped.
type Scheduler struct {
	runner Runner
	spec   string
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler parses spec (five-field cron or a descriptor such as
// "@every 5m") and returns a scheduler that is not yet running.
func NewScheduler(runner Runner, spec string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		spec:   spec,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, &domain.ValidationError{Field: "cron", Value: spec, Reason: err.Error()}
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// an in-flight drain to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return &domain.ValidationError{Field: "cron", Value: s.spec, Reason: err.Error()}
	}
	s.logger.Info("scheduler started", slog.String("cron", s.spec))
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	rep, err := s.runner.Execute(ctx)
	switch {
	case errors.Is(err, domain.ErrQueueBusy):
		s.logger.Info("queue busy, skipping tick")
	case err != nil:
		s.logger.Error("scheduled run failed", slog.String("error", err.Error()))
	default:
		s.logger.Info("scheduled run finished",
			slog.Int("executed", rep.Executed),
			slog.Int("completed", rep.Completed),
			slog.Int("failed", rep.Failed),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}
