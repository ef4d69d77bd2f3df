// Package webhook receives payment provider callbacks.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// SignatureHeader carries the provider's HMAC over the raw body.
const SignatureHeader = "Stripe-Signature"

// PaymentWebhookHandler applies one verified delivery. Implemented by
// *service.Reconciler.
type PaymentWebhookHandler interface {
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	reconciler PaymentWebhookHandler
}

func NewStripeHandler(reconciler PaymentWebhookHandler) *StripeHandler {
	return &StripeHandler{reconciler: reconciler}
}

// HandleWebhook answers 401 for unauthenticated deliveries and 200 for
// everything else, including events that were ignored or could not be
// matched, so the provider stops retrying them.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:8080/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Payload too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		log.Warn().Msg("webhook without signature header")
		handler.ErrorResponse(w, r, domain.Unauthenticated("webhook.stripe", "Missing signature"))
		return
	}

	if err := h.reconciler.HandlePaymentWebhook(r.Context(), payload, signature); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
