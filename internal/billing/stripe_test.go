package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStripeProvider(t *testing.T) *StripeProvider {
	t.Helper()
	p, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123", WebhookSecret: testWebhookSecret})
	require.NoError(t, err)
	return p
}

func signedEvent(t *testing.T, secret, payload string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func checkoutEvent(eventType, paymentStatus, invoiceID string) string {
	return fmt.Sprintf(`{
		"id": "evt_123",
		"object": "event",
		"type": %q,
		"data": {"object": {
			"id": "cs_test_abc",
			"object": "checkout.session",
			"payment_status": %q,
			"metadata": {"invoice_id": %q}
		}}
	}`, eventType, paymentStatus, invoiceID)
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"usd", "125.50", "USD", 12550},
		{"rounds half cent", "10.005", "usd", 1001},
		{"whole amount", "7", "eur", 700},
		{"zero decimal", "1500", "JPY", 1500},
		{"zero decimal rounds", "1499.6", "jpy", 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestNewStripeProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{WebhookSecret: testWebhookSecret})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantPaid    bool
		wantInvoice string
	}{
		{
			name:        "paid checkout session",
			payload:     checkoutEvent(EventCheckoutSessionCompleted, "paid", "inv-1"),
			wantPaid:    true,
			wantInvoice: "inv-1",
		},
		{
			name:        "delayed payment not yet paid",
			payload:     checkoutEvent(EventCheckoutSessionCompleted, "unpaid", "inv-1"),
			wantPaid:    false,
			wantInvoice: "inv-1",
		},
		{
			name:        "async payment succeeded",
			payload:     checkoutEvent(EventCheckoutAsyncPaymentSucceed, "paid", "inv-2"),
			wantPaid:    true,
			wantInvoice: "inv-2",
		},
		{
			name:     "unrelated event type",
			payload:  `{"id":"evt_999","object":"event","type":"customer.created","data":{"object":{}}}`,
			wantPaid: false,
		},
	}

	p := newTestStripeProvider(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, header := signedEvent(t, testWebhookSecret, tt.payload)

			ev, err := p.ParseWebhook(payload, header)

			require.NoError(t, err)
			assert.Equal(t, tt.wantPaid, ev.PaymentSucceeded)
			assert.Equal(t, tt.wantInvoice, ev.InvoiceID)
			assert.NotEmpty(t, ev.ID)
		})
	}
}

func TestParseWebhook_CarriesSessionReference(t *testing.T) {
	p := newTestStripeProvider(t)
	payload, header := signedEvent(t, testWebhookSecret, checkoutEvent(EventCheckoutSessionCompleted, "paid", "inv-1"))

	ev, err := p.ParseWebhook(payload, header)

	require.NoError(t, err)
	assert.Equal(t, "evt_123", ev.ID)
	assert.Equal(t, "cs_test_abc", ev.PaymentReference)
}

func TestParseWebhook_RejectsBadSignatures(t *testing.T) {
	p := newTestStripeProvider(t)
	body := checkoutEvent(EventCheckoutSessionCompleted, "paid", "inv-1")

	t.Run("wrong secret", func(t *testing.T) {
		payload, header := signedEvent(t, "whsec_other", body)
		_, err := p.ParseWebhook(payload, header)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := p.ParseWebhook([]byte(body), "")
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		_, header := signedEvent(t, testWebhookSecret, body)
		tampered := checkoutEvent(EventCheckoutSessionCompleted, "paid", "inv-evil")
		_, err := p.ParseWebhook([]byte(tampered), header)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("no configured secret", func(t *testing.T) {
		unconfigured, err := NewStripeProvider(StripeConfig{APIKey: "sk_test_123"})
		require.NoError(t, err)
		payload, header := signedEvent(t, "", body)
		_, err = unconfigured.ParseWebhook(payload, header)
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})
}

func TestStripeConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  StripeConfig
		wantErr bool
	}{
		{"valid config", StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_123"}, false},
		{"missing API key", StripeConfig{WebhookSecret: "whsec_123"}, true},
		{"missing webhook secret", StripeConfig{APIKey: "sk_test_123"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.True(t, (&StripeConfig{APIKey: "sk_test_abc"}).IsTestMode())
	assert.False(t, (&StripeConfig{APIKey: "sk_live_abc"}).IsTestMode())
}

func TestStripeError(t *testing.T) {
	original := errors.New("connection reset")
	err := &StripeError{Message: "failed to create price", Code: "rate_limit", OriginalError: original}

	assert.Equal(t, "stripe: failed to create price (code: rate_limit)", err.Error())
	assert.ErrorIs(t, err, original)
	assert.True(t, err.IsTemporary())
	assert.False(t, (&StripeError{Message: "bad", Code: "parameter_invalid_integer", HTTPStatus: 400}).IsTemporary())
	assert.True(t, (&StripeError{Message: "down", HTTPStatus: 503}).IsTemporary())
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, IsTemporary(fmt.Errorf("wrapped: %w", &StripeError{Message: "slow down", Code: "rate_limit"})))
	assert.False(t, IsTemporary(&StripeError{Message: "bad", Code: "parameter_invalid_integer", HTTPStatus: 400}))
	assert.False(t, IsTemporary(errors.New("connection reset")))
	assert.False(t, IsTemporary(nil))
}
