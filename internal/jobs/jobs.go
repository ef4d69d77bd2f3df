// Package jobs defines the background job types and the queue contract the
// worker drains. Jobs live in the Postgres jobs table.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Queue names.
const (
	QueueInvoicing = "invoicing"
	QueueEmail     = "email"
	QueueCleanup   = "cleanup"
)

// Job is a claimed unit of background work.
type Job struct {
	ID             uuid.UUID
	JobType        string
	Queue          string
	Payload        json.RawMessage
	Status         string
	Priority       int
	Attempts       int
	MaxRetries     int
	TimeoutSeconds int
	DedupKey       *string
	ScheduledAt    time.Time
	CreatedAt      time.Time
}

// EnqueueParams describes a job to insert.
type EnqueueParams struct {
	JobType        string
	Queue          string
	Payload        json.RawMessage
	Priority       int
	MaxRetries     int
	TimeoutSeconds int
	ScheduledAt    time.Time

	// DedupKey makes the enqueue a no-op when a job with the same key exists.
	DedupKey string
}

// Queue accepts new jobs. EnqueueJob reports false when DedupKey matched an existing job.
type Queue interface {
	EnqueueJob(ctx context.Context, params EnqueueParams) (bool, error)
}

// Store is the full queue contract used by the worker.
type Store interface {
	Queue

	// ClaimNextJob returns (nil, nil) when nothing is due.
	ClaimNextJob(ctx context.Context, queue, workerID string, now time.Time) (*Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, at time.Time) error

	// FailJob reschedules the job at retryAt while attempts remain,
	// otherwise marks it failed.
	FailJob(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int64, error)
}

func enqueue(ctx context.Context, q Queue, params EnqueueParams, payload any) (bool, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payload: %w", err)
	}
	params.Payload = payloadJSON
	if params.MaxRetries == 0 {
		params.MaxRetries = 3
	}
	if params.TimeoutSeconds == 0 {
		params.TimeoutSeconds = 60
	}
	return q.EnqueueJob(ctx, params)
}

// RetryBackoff returns the delay before retry number attempt (1-based).
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<(attempt-1)) * 30 * time.Second
}
