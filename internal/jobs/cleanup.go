package jobs

import (
	"context"
	"time"
)

// Job type constants for cleanup jobs
const (
	JobTypeCleanupFinishedJobs = "cleanup:finished_jobs"
)

// FinishedJobRetention is how long completed and failed jobs are kept.
const FinishedJobRetention = 30 * 24 * time.Hour

// CleanupFinishedJobsPayload is intentionally empty; the job is self-contained.
type CleanupFinishedJobsPayload struct{}

// EnqueueCleanupFinishedJobs enqueues the daily purge of old finished jobs.
func EnqueueCleanupFinishedJobs(ctx context.Context, q Queue, scheduledAt time.Time) (bool, error) {
	return enqueue(ctx, q, EnqueueParams{
		JobType:     JobTypeCleanupFinishedJobs,
		Queue:       QueueCleanup,
		Priority:    10,
		MaxRetries:  1,
		ScheduledAt: scheduledAt,
		DedupKey:    JobTypeCleanupFinishedJobs + ":" + scheduledAt.UTC().Format(time.DateOnly),
	}, CleanupFinishedJobsPayload{})
}
