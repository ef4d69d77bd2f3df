package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job type constants for email jobs
const (
	JobTypeInvoiceSent    = "email:invoice_sent"
	JobTypeInvoiceOverdue = "email:invoice_overdue"
)

// InvoiceEmailPayload identifies the invoice an email job is about. The
// handler reloads invoice and client so the email reflects committed state.
type InvoiceEmailPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// EnqueueInvoiceSentEmail queues the client-facing "new invoice" email.
func EnqueueInvoiceSentEmail(ctx context.Context, q Queue, invoiceID uuid.UUID, at time.Time) (bool, error) {
	return enqueue(ctx, q, EnqueueParams{
		JobType:     JobTypeInvoiceSent,
		Queue:       QueueEmail,
		Priority:    100,
		ScheduledAt: at,
		DedupKey:    JobTypeInvoiceSent + ":" + invoiceID.String(),
	}, InvoiceEmailPayload{InvoiceID: invoiceID})
}

// EnqueueInvoiceOverdueEmail queues the overdue reminder. At most one per
// invoice per day.
func EnqueueInvoiceOverdueEmail(ctx context.Context, q Queue, invoiceID uuid.UUID, at time.Time) (bool, error) {
	return enqueue(ctx, q, EnqueueParams{
		JobType:     JobTypeInvoiceOverdue,
		Queue:       QueueEmail,
		Priority:    75,
		ScheduledAt: at,
		DedupKey:    JobTypeInvoiceOverdue + ":" + invoiceID.String() + ":" + at.UTC().Format(time.DateOnly),
	}, InvoiceEmailPayload{InvoiceID: invoiceID})
}
