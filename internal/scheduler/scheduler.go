// Package scheduler drives recurring pipeline runs on a fixed weekday
// schedule. Hiring activity happens in business hours, so runs fire at
// morning, midday and late afternoon, Monday through Friday.
package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec fires at 08:00, 12:00 and 17:00 on weekdays.
const DefaultSpec = "0 8,12,17 * * 1-5"

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context) error

// Scheduler wraps a cron runner around a single run function. Overlapping
// triggers are skipped, never queued: a run slower than the gap between
// slots must not pile up metered API requests.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	run     RunFunc
	running atomic.Bool
}

func New(run RunFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.Named("scheduler"),
		run:    run,
	}
}

// Start registers the schedule and begins firing. Blocks until ctx is
// cancelled, then waits for an in-flight run to finish.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := s.cron.AddFunc(spec, func() { s.trigger(ctx) }); err != nil {
		return err
	}
	s.logger.Info("scheduler started", zap.String("spec", spec))
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping slot")
		return
	}
	defer s.running.Store(false)

	if err := s.run(ctx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}
