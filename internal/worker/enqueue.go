package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/resumezen/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeExpireUserPlans      = "expire_user_plans"
	JobTypePurgeExpiredSessions = "purge_expired_sessions"
)

// MaintenanceJobTypes are the job types the scheduler keeps enqueued.
var MaintenanceJobTypes = []string{
	JobTypeExpireUserPlans,
	JobTypePurgeExpiredSessions,
}

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// MaintenancePayload is the payload for maintenance jobs.
type MaintenancePayload struct {
	RequestedAt time.Time `json:"requested_at"`
}

// Queue is the subset of repository.Queries used to enqueue jobs.
type Queue interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
	CountPendingJobsByType(ctx context.Context, jobType string) (int64, error)
}

var _ Queue = (*repository.Queries)(nil)

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queue Queue,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queue.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueMaintenance enqueues a maintenance job unless one of the same type
// is already pending or running. It reports whether a job was enqueued.
func EnqueueMaintenance(ctx context.Context, queue Queue, jobType string, opts ...EnqueueOption) (bool, error) {
	pending, err := queue.CountPendingJobsByType(ctx, jobType)
	if err != nil {
		return false, fmt.Errorf("count pending %s jobs: %w", jobType, err)
	}
	if pending > 0 {
		return false, nil
	}

	opts = append([]EnqueueOption{WithPriority(PriorityLow), WithMaxAttempts(1)}, opts...)
	if _, err := EnqueueJob(ctx, queue, jobType, MaintenancePayload{RequestedAt: time.Now().UTC()}, opts...); err != nil {
		return false, err
	}
	return true, nil
}
