package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is one polling tick.
type Runner interface {
	RunTick(ctx context.Context)
}

// Scheduler re-invokes the dispatcher on a fixed period. The first tick
// runs synchronously at startup.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	runner   Runner
	interval time.Duration
	log      *slog.Logger
}

func New(ctx context.Context, runner Runner, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		ctx:      ctx,
		cron:     cron.New(),
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("add cron func: %w", err)
	}

	// Initial pass before the timer takes over.
	s.tick()

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		s.log.InfoContext(s.ctx, "Scheduler context is done",
			"error", s.ctx.Err())

		return
	}

	s.runner.RunTick(s.ctx)
}
