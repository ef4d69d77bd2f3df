package billing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_CreatePaymentLink(t *testing.T) {
	m := NewMockProvider()

	link, err := m.CreatePaymentLink(context.Background(), CreatePaymentLinkParams{
		Amount: decimal.RequireFromString("125.50"), Currency: "USD", CorrelationKey: "inv-1",
	})

	require.NoError(t, err)
	assert.Contains(t, link.URL, link.ID)
	assert.Equal(t, link, m.Links["inv-1"])
	assert.Equal(t, 1, m.Calls("CreatePaymentLink"))
}

func TestMockProvider_RejectsZeroAmount(t *testing.T) {
	m := NewMockProvider()
	_, err := m.CreatePaymentLink(context.Background(), CreatePaymentLinkParams{Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMockProvider_ParseWebhook(t *testing.T) {
	m := NewMockProvider()
	want := WebhookEvent{ID: "evt_1", Type: EventCheckoutSessionCompleted, PaymentSucceeded: true, InvoiceID: "inv-1", PaymentReference: "cs_1"}

	got, err := m.ParseWebhook(MockEventPayload(want), m.ValidSignature)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	_, err = m.ParseWebhook(MockEventPayload(want), "forged")
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
}
