package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/billing"
	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/telemetry"
)

// PaymentConfirmer applies a confirmed payment to an invoice.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, invoiceID uuid.UUID, paymentReference string) (bool, error)
}

// Reconciler turns authenticated payment webhooks into paid transitions.
type Reconciler struct {
	provider billing.Provider
	payments PaymentConfirmer
	events   domain.WebhookEventStore
	clock    clock.Clock
	metrics  *telemetry.BusinessMetrics
	reporter *telemetry.Reporter
	logger   zerolog.Logger
}

func NewReconciler(provider billing.Provider, payments PaymentConfirmer, events domain.WebhookEventStore, clk clock.Clock, metrics *telemetry.BusinessMetrics, reporter *telemetry.Reporter, logger zerolog.Logger) *Reconciler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Reconciler{
		provider: provider,
		payments: payments,
		events:   events,
		clock:    clk,
		metrics:  metrics,
		reporter: reporter,
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// HandlePaymentWebhook verifies and applies one provider delivery. The only
// error it returns is an authentication failure; everything after that is
// logged and acknowledged so the provider does not retry.
func (r *Reconciler) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "webhook.payment"
	start := time.Now()

	ev, err := r.provider.ParseWebhook(payload, signature)
	if errors.Is(err, billing.ErrInvalidWebhookSignature) {
		r.metrics.WebhookRejected("stripe", "signature")
		return domain.Unauthenticated(op, "Invalid webhook signature")
	}
	log := logFrom(ctx, r.logger)
	if err != nil {
		r.metrics.WebhookRejected("stripe", "malformed")
		log.Warn().Err(err).Msg("authenticated webhook could not be decoded")
		return nil
	}

	l := log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	outcome := r.apply(ctx, &l, ev)
	r.metrics.Webhook("stripe", ev.Type, outcome, time.Since(start))
	return nil
}

func (r *Reconciler) apply(ctx context.Context, log *zerolog.Logger, ev *billing.WebhookEvent) string {
	if !ev.PaymentSucceeded {
		log.Debug().Msg("webhook event ignored")
		return "ignored"
	}

	seen, err := r.events.WebhookEventProcessed(ctx, ev.ID)
	if err != nil {
		r.fail(ctx, log, ev, err, "failed to check webhook replay guard")
		return "error"
	}
	if seen {
		log.Info().Msg("webhook event already processed")
		return "duplicate"
	}

	outcome := r.confirm(ctx, log, ev)
	if outcome == "error" {
		// Unrecorded, so a manual redelivery can still apply it.
		return outcome
	}
	if err := r.events.RecordWebhookEvent(ctx, ev.ID, ev.Type, r.clock.Now()); err != nil {
		log.Error().Err(err).Msg("failed to record webhook event")
	}
	return outcome
}

func (r *Reconciler) confirm(ctx context.Context, log *zerolog.Logger, ev *billing.WebhookEvent) string {
	invoiceID, err := uuid.Parse(ev.InvoiceID)
	if err != nil {
		log.Warn().Str("correlation_key", ev.InvoiceID).Msg("payment event without a usable invoice id")
		return "unmatched"
	}
	l := log.With().Str("invoice_id", invoiceID.String()).Logger()

	applied, err := r.payments.ConfirmPayment(ctx, invoiceID, ev.PaymentReference)
	switch {
	case errors.Is(err, domain.ErrInvoiceNotFound):
		l.Warn().Msg("payment event for unknown invoice")
		return "unmatched"
	case domain.IsCode(err, domain.EINVALIDSTATE):
		l.Warn().Err(err).Msg("payment event for invoice that cannot be paid")
		return "rejected"
	case err != nil:
		r.fail(ctx, &l, ev, err, "failed to confirm payment")
		return "error"
	case !applied:
		l.Info().Msg("invoice already paid")
		return "already_paid"
	}
	return "applied"
}

func (r *Reconciler) fail(ctx context.Context, log *zerolog.Logger, ev *billing.WebhookEvent, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	r.reporter.CaptureError(ctx, err, map[string]any{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"invoice_id": ev.InvoiceID,
	})
}
