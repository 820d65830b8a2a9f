package metrics

import "time"

// JobCompleted records a successful job completion
func JobCompleted(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "completed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobFailed records a job failure
func JobFailed(jobType string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, "failed").Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// JobRetried records a job that will be attempted again
func JobRetried(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}
