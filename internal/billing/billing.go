// Package billing creates hosted payment links and authenticates payment
// provider webhooks.
package billing

//go:generate mockgen -destination=mock_billing/provider.go -package=mock_billing . Provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider defines the interface for payment processing.
type Provider interface {
	// CreatePaymentLink creates a hosted payment page for a fixed amount.
	// The correlation key is attached as metadata and returned on the
	// provider's completion webhook.
	CreatePaymentLink(ctx context.Context, params CreatePaymentLinkParams) (*PaymentLink, error)

	// ParseWebhook verifies the payload and extracts the fields the
	// reconciler needs. Returns ErrInvalidWebhookSignature on a bad signature.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CreatePaymentLinkParams contains parameters for creating a payment link.
type CreatePaymentLinkParams struct {
	// Amount in major units (e.g. 125.50). Rounded to the currency's minor unit.
	Amount decimal.Decimal

	// Currency code (ISO 4217), any case
	Currency string

	// CorrelationKey identifies the invoice on the completion webhook
	CorrelationKey string

	// Description is shown as the product name on the payment page
	Description string

	// SuccessURL is where the payer is redirected after paying
	SuccessURL string

	// IdempotencyKey makes provider-side retries safe
	IdempotencyKey string
}

// PaymentLink is a created hosted payment page.
type PaymentLink struct {
	ID  string
	URL string
}

// WebhookEvent is the provider-neutral view of an authenticated webhook.
type WebhookEvent struct {
	ID   string
	Type string

	// PaymentSucceeded is true only for events that confirm funds were collected.
	PaymentSucceeded bool

	// InvoiceID is the correlation key from metadata, empty when absent.
	InvoiceID string

	// PaymentReference is the provider id of the payment (checkout session).
	PaymentReference string
}

// CorrelationMetadataKey is the metadata key carrying the invoice id.
const CorrelationMetadataKey = "invoice_id"
