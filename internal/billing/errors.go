package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrInvalidAmount is returned when the link amount is not positive.
	ErrInvalidAmount = errors.New("billing: amount must be greater than zero")

	// ErrMalformedEvent is returned when an authenticated payload cannot be decoded.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "rate_limit")
	HTTPStatus    int    // HTTP status code from Stripe
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.HTTPStatus >= 500
}

// IsTemporary reports whether err wraps a provider error worth retrying.
func IsTemporary(err error) bool {
	var se *StripeError
	return errors.As(err, &se) && se.IsTemporary()
}
