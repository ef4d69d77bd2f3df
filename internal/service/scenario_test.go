package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/jobs"
)

// TestInvoiceLifecycle walks one invoice from draft to paid through an
// overdue sweep and a replayed payment webhook.
func TestInvoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.createDraft(t, fixtureStart.AddDate(0, 0, 14))
	assert.Equal(t, "INV-20260302-001", inv.InvoiceNumber)
	assert.True(t, dec("125.50").Equal(inv.TotalAmount))
	assert.Equal(t, "USD", inv.Currency)

	_, err := f.svc.Send(ctx, f.owner.ID, inv.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceMissingArtifacts)

	_, err = f.svc.GeneratePDF(ctx, f.owner.ID, inv.ID)
	require.NoError(t, err)
	_, err = f.svc.IssuePaymentLink(ctx, f.owner.ID, inv.ID)
	require.NoError(t, err)

	sent, err := f.svc.Send(ctx, f.owner.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, sent.Status)
	assert.Len(t, f.queue.ofType(jobs.JobTypeInvoiceSent), 1)
	assert.Len(t, f.notifications.ofType(domain.NotificationInvoiceSent), 1)

	// Fifteen days later the due date has passed.
	f.clock.Advance(15 * 24 * time.Hour)
	n, err := f.sweep.RunOverdueSweep(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.InvoiceStatusOverdue, f.invoices.status(inv.ID))

	notes := f.notifications.ofType(domain.NotificationOverdueReminder)
	require.Len(t, notes, 1)
	assert.Equal(t, "Invoice INV-20260302-001 to Acme Corp is now overdue.", notes[0].Message)

	overdue, err := f.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	payload := paidEvent("evt_lifecycle", inv.ID)
	require.NoError(t, f.reconciler.HandlePaymentWebhook(ctx, payload, f.provider.ValidSignature))
	paidAt := f.clock.Now()
	f.clock.Advance(time.Minute)
	require.NoError(t, f.reconciler.HandlePaymentWebhook(ctx, payload, f.provider.ValidSignature))

	settled, err := f.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, settled.Status)
	assert.True(t, settled.UpdatedAt.After(overdue.UpdatedAt))
	assert.Equal(t, paidAt, settled.UpdatedAt, "replay does not touch the invoice")
	paid := f.notifications.ofType(domain.NotificationInvoicePaid)
	require.Len(t, paid, 1)
	assert.Equal(t, "Invoice INV-20260302-001 has been paid (USD 125.50).", paid[0].Message)

	payments, err := f.svc.ListPayments(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, inv.ID, payments[0].ID)

	_, err = f.svc.UpdateInvoice(ctx, f.owner.ID, inv.ID, domain.InvoicePatch{})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotEditable)

	again, err := f.sweep.RunOverdueSweep(ctx, f.clock.Now().AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, again)
}
