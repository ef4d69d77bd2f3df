package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Stripe event types the reconciler acts on. Payment links complete a
// checkout session; delayed payment methods confirm asynchronously.
const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceed = "checkout.session.async_payment_succeeded"
)

// zeroDecimalCurrencies are charged in whole units by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// StripeProvider implements Provider using Stripe payment links.
type StripeProvider struct {
	client        *stripe.Client
	webhookSecret string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}
	return &StripeProvider{
		client:        stripe.NewClient(cfg.APIKey),
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// MinorUnits converts a major-unit amount to Stripe's integer amount.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Round(2).Shift(2).IntPart()
}

// CreatePaymentLink creates an inline price and a payment link for it.
func (s *StripeProvider) CreatePaymentLink(ctx context.Context, params CreatePaymentLinkParams) (*PaymentLink, error) {
	currency := strings.ToLower(params.Currency)
	unitAmount := MinorUnits(params.Amount, currency)
	if unitAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	priceParams := &stripe.PriceCreateParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(unitAmount),
		ProductData: &stripe.PriceCreateProductDataParams{
			Name: stripe.String(params.Description),
			Metadata: map[string]string{
				CorrelationMetadataKey: params.CorrelationKey,
			},
		},
	}
	if params.IdempotencyKey != "" {
		priceParams.SetIdempotencyKey(params.IdempotencyKey + "_price")
	}
	price, err := s.client.V1Prices.Create(ctx, priceParams)
	if err != nil {
		return nil, wrapStripeError("failed to create price", err)
	}

	linkParams := &stripe.PaymentLinkCreateParams{
		LineItems: []*stripe.PaymentLinkCreateLineItemParams{
			{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			CorrelationMetadataKey: params.CorrelationKey,
		},
	}
	if params.SuccessURL != "" {
		linkParams.AfterCompletion = &stripe.PaymentLinkCreateAfterCompletionParams{
			Type: stripe.String(string(stripe.PaymentLinkAfterCompletionTypeRedirect)),
			Redirect: &stripe.PaymentLinkCreateAfterCompletionRedirectParams{
				URL: stripe.String(params.SuccessURL),
			},
		}
	}
	if params.IdempotencyKey != "" {
		linkParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	link, err := s.client.V1PaymentLinks.Create(ctx, linkParams)
	if err != nil {
		return nil, wrapStripeError("failed to create payment link", err)
	}

	return &PaymentLink{ID: link.ID, URL: link.URL}, nil
}

func (s *StripeProvider) constructEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.webhookSecret == "" || signature == "" {
		return stripe.Event{}, ErrInvalidWebhookSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return event, nil
}

// ParseWebhook authenticates the payload and reads the checkout session.
func (s *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := s.constructEvent(payload, signature)
	if err != nil {
		return nil, err
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}

	switch out.Type {
	case EventCheckoutSessionCompleted, EventCheckoutAsyncPaymentSucceed:
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, ErrMalformedEvent
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	out.InvoiceID = session.Metadata[CorrelationMetadataKey]
	out.PaymentReference = session.ID
	// A completed session with a delayed method is still unpaid until the
	// async success event arrives.
	out.PaymentSucceeded = out.Type == EventCheckoutAsyncPaymentSucceed ||
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	return out, nil
}

func wrapStripeError(msg string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return &StripeError{
			Message:       fmt.Sprintf("%s: %s", msg, serr.Msg),
			Code:          string(serr.Code),
			HTTPStatus:    serr.HTTPStatusCode,
			RequestID:     serr.RequestID,
			OriginalError: err,
		}
	}
	return &StripeError{Message: msg, OriginalError: err}
}
