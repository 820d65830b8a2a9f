package worker

import (
	"fmt"
	"time"
)

// Config controls the job worker and the maintenance scheduler that feeds it.
type Config struct {
	// Concurrency is the number of goroutines polling the jobs table.
	Concurrency int

	// PollInterval is how often an idle goroutine looks for a job.
	PollInterval time.Duration

	// JobTimeout bounds a single Handle call. Plan expiry and session
	// purges are single statements, so minutes is generous.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Stop waits for in-flight jobs.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age after which a 'running' job left behind
	// by a crashed process is put back to pending on Start.
	StaleJobThreshold time.Duration

	// MaintenanceInterval is how often the scheduler enqueues the
	// maintenance jobs.
	MaintenanceInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:         2,
		PollInterval:        5 * time.Second,
		JobTimeout:          5 * time.Minute,
		ShutdownTimeout:     30 * time.Second,
		StaleJobThreshold:   10 * time.Minute,
		MaintenanceInterval: 15 * time.Minute,
	}
}

// Validate rejects values that would spin the poll loop or never finish.
func (c Config) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 100 {
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	}

	minimums := []struct {
		name  string
		value time.Duration
		min   time.Duration
	}{
		{"poll interval", c.PollInterval, time.Second},
		{"job timeout", c.JobTimeout, time.Second},
		{"shutdown timeout", c.ShutdownTimeout, time.Second},
		{"stale job threshold", c.StaleJobThreshold, time.Minute},
		{"maintenance interval", c.MaintenanceInterval, time.Minute},
	}
	for _, m := range minimums {
		if m.value < m.min {
			return fmt.Errorf("%s must be at least %v, got %v", m.name, m.min, m.value)
		}
	}
	return nil
}
