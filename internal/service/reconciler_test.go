package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/ledgerly/internal/billing"
	"github.com/dukerupert/ledgerly/internal/domain"
)

func paidEvent(id string, invoiceID uuid.UUID) []byte {
	return billing.MockEventPayload(billing.WebhookEvent{
		ID:               id,
		Type:             billing.EventCheckoutSessionCompleted,
		PaymentSucceeded: true,
		InvoiceID:        invoiceID.String(),
		PaymentReference: "cs_test_" + id,
	})
}

func TestHandlePaymentWebhook_BadSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	inv := f.sentInvoice(domain.InvoiceStatusSent, fixtureStart.AddDate(0, 0, 7))

	err := f.reconciler.HandlePaymentWebhook(context.Background(), paidEvent("evt_1", inv.ID), "forged")

	assert.Equal(t, domain.EUNAUTHENTICATED, domain.ErrorCode(err))
	assert.Equal(t, domain.InvoiceStatusSent, f.invoices.status(inv.ID))
	assert.Empty(t, f.webhookEvents.events)
}

func TestHandlePaymentWebhook_ReplayYieldsOneNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(domain.InvoiceStatusViewed, fixtureStart.AddDate(0, 0, 7))
	payload := paidEvent("evt_1", inv.ID)

	require.NoError(t, f.reconciler.HandlePaymentWebhook(ctx, payload, f.provider.ValidSignature))
	require.NoError(t, f.reconciler.HandlePaymentWebhook(ctx, payload, f.provider.ValidSignature))

	assert.Equal(t, domain.InvoiceStatusPaid, f.invoices.status(inv.ID))
	assert.Len(t, f.notifications.ofType(domain.NotificationInvoicePaid), 1)
	assert.Contains(t, f.webhookEvents.events, "evt_1")
}

func TestHandlePaymentWebhook_DistinctEventsSameInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.sentInvoice(domain.InvoiceStatusSent, fixtureStart.AddDate(0, 0, 7))

	require.NoError(t, f.reconciler.HandlePaymentWebhook(ctx, paidEvent("evt_1", inv.ID), f.provider.ValidSignature))
	require.NoError(t, f.reconciler.HandlePaymentWebhook(ctx, paidEvent("evt_2", inv.ID), f.provider.ValidSignature))

	assert.Len(t, f.notifications.ofType(domain.NotificationInvoicePaid), 1)
	stored, _ := f.invoices.GetInvoice(ctx, inv.ID)
	assert.Equal(t, "cs_test_evt_1", *stored.PaymentReference)
}

func TestHandlePaymentWebhook_AcknowledgedWithoutChange(t *testing.T) {
	tests := []struct {
		name  string
		event billing.WebhookEvent
	}{
		{"unrelated event", billing.WebhookEvent{ID: "evt_a", Type: "customer.created"}},
		{"unpaid session", billing.WebhookEvent{ID: "evt_b", Type: billing.EventCheckoutSessionCompleted}},
		{"missing correlation key", billing.WebhookEvent{ID: "evt_c", Type: billing.EventCheckoutSessionCompleted, PaymentSucceeded: true}},
		{"unknown invoice", billing.WebhookEvent{ID: "evt_d", Type: billing.EventCheckoutSessionCompleted, PaymentSucceeded: true, InvoiceID: uuid.NewString()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			inv := f.sentInvoice(domain.InvoiceStatusSent, fixtureStart.AddDate(0, 0, 7))

			err := f.reconciler.HandlePaymentWebhook(context.Background(), billing.MockEventPayload(tt.event), f.provider.ValidSignature)

			assert.NoError(t, err)
			assert.Equal(t, domain.InvoiceStatusSent, f.invoices.status(inv.ID))
			assert.Empty(t, f.notifications.ofType(domain.NotificationInvoicePaid))
		})
	}
}

func TestHandlePaymentWebhook_MalformedAuthenticatedPayloadIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	err := f.reconciler.HandlePaymentWebhook(context.Background(), []byte("{not json"), f.provider.ValidSignature)

	assert.NoError(t, err)
}

func TestHandlePaymentWebhook_DraftInvoiceIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	inv := f.createDraft(t, fixtureStart.AddDate(0, 0, 7))

	err := f.reconciler.HandlePaymentWebhook(context.Background(), paidEvent("evt_1", inv.ID), f.provider.ValidSignature)

	assert.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, f.invoices.status(inv.ID))
}

// failingConfirmer reports an internal error for every payment.
type failingConfirmer struct{}

func (failingConfirmer) ConfirmPayment(context.Context, uuid.UUID, string) (bool, error) {
	return false, errBoom
}

func TestHandlePaymentWebhook_InternalFailureIsAcknowledgedAndNotRecorded(t *testing.T) {
	f := newFixture(t)
	r := NewReconciler(f.provider, failingConfirmer{}, f.webhookEvents, f.clock, nil, nil, zerologNop())

	err := r.HandlePaymentWebhook(context.Background(), paidEvent("evt_1", uuid.New()), f.provider.ValidSignature)

	assert.NoError(t, err)
	assert.NotContains(t, f.webhookEvents.events, "evt_1")
}
