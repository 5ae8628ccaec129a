package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"NewsPipeline/internal/ports"
)

// Scheduler wires the cron-like driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     RunOptions
	logger   *slog.Logger

	// running drops a trigger that fires while the previous run is still going.
	running sync.Mutex
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts RunOptions, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.runOnce(ctx, trigger)
	})
}

func (s *Scheduler) runOnce(ctx context.Context, trigger time.Time) {
	if !s.running.TryLock() {
		if s.logger != nil {
			s.logger.Warn("previous run still in progress, skipping trigger", "trigger", trigger)
		}
		return
	}
	defer s.running.Unlock()

	if _, err := s.pipeline.Run(ctx, s.opts); err != nil && s.logger != nil {
		s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
