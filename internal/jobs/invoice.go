package jobs

import (
	"context"
	"time"
)

// Job type constants for invoice jobs
const (
	JobTypeMarkOverdueInvoices = "invoice:mark_overdue"
)

// MarkOverdueInvoicesPayload is the payload for the daily overdue sweep.
type MarkOverdueInvoicesPayload struct {
	// Day is the UTC calendar day the sweep was scheduled for (YYYY-MM-DD).
	Day string `json:"day"`
}

// MarkOverdueDedupKey identifies the single sweep job of a day.
func MarkOverdueDedupKey(day time.Time) string {
	return JobTypeMarkOverdueInvoices + ":" + day.UTC().Format(time.DateOnly)
}

// EnqueueMarkOverdueInvoices enqueues the day's overdue sweep. A second call
// for the same day is a no-op.
func EnqueueMarkOverdueInvoices(ctx context.Context, q Queue, scheduledAt time.Time) (bool, error) {
	return enqueue(ctx, q, EnqueueParams{
		JobType:        JobTypeMarkOverdueInvoices,
		Queue:          QueueInvoicing,
		Priority:       50,
		MaxRetries:     3,
		TimeoutSeconds: 600,
		ScheduledAt:    scheduledAt,
		DedupKey:       MarkOverdueDedupKey(scheduledAt),
	}, MarkOverdueInvoicesPayload{Day: scheduledAt.UTC().Format(time.DateOnly)})
}
