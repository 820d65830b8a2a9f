package worker

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler enqueues the maintenance jobs on a fixed interval.
type Scheduler struct {
	queue    Queue
	interval time.Duration
	jobTypes []string
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler for MaintenanceJobTypes.
func NewScheduler(queue Queue, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		queue:    queue,
		interval: interval,
		jobTypes: MaintenanceJobTypes,
		logger:   logger,
	}
}

// Run enqueues every maintenance job once immediately and then on each
// tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Maintenance scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("Maintenance scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick enqueues each maintenance job that is not already queued.
func (s *Scheduler) Tick(ctx context.Context) {
	for _, jobType := range s.jobTypes {
		enqueued, err := EnqueueMaintenance(ctx, s.queue, jobType)
		if err != nil {
			s.logger.Error("Failed to enqueue maintenance job", "job_type", jobType, "error", err)
			continue
		}
		if enqueued {
			s.logger.Debug("Enqueued maintenance job", "job_type", jobType)
		}
	}
}
