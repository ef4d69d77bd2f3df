package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/jobs"
	"github.com/dukerupert/ledgerly/internal/telemetry"
)

const (
	perInvoiceTimeout = 30 * time.Second
	unknownClientName = "an unknown client"
)

// SweepService moves past-due invoices to overdue.
type SweepService struct {
	invoices      domain.InvoiceStore
	clients       domain.ClientStore
	notifications domain.NotificationService
	queue         jobs.Queue
	clock         clock.Clock
	metrics       *telemetry.BusinessMetrics
	logger        zerolog.Logger
}

func NewSweepService(invoices domain.InvoiceStore, clients domain.ClientStore, notifications domain.NotificationService, queue jobs.Queue, clk clock.Clock, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *SweepService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &SweepService{
		invoices:      invoices,
		clients:       clients,
		notifications: notifications,
		queue:         queue,
		clock:         clk,
		metrics:       metrics,
		logger:        logger.With().Str("component", "overdue_sweep").Logger(),
	}
}

// RunOverdueSweep transitions every sent or viewed invoice due before the UTC
// day of now and returns how many it moved. Once started the sweep ignores
// cancellation. Per-invoice failures are logged and skipped; only a failed
// candidate query is returned.
func (s *SweepService) RunOverdueSweep(ctx context.Context, now time.Time) (int, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	today := domain.DateOnly(now)
	log := logFrom(ctx, s.logger).With().Str("day", today.Format(time.DateOnly)).Logger()

	candidates, err := s.invoices.ListOverdueCandidates(ctx, today)
	if err != nil {
		s.metrics.OverdueSweep("error", 0, time.Since(start))
		return 0, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	count := 0
	for i := range candidates {
		if s.sweepOne(ctx, &log, &candidates[i], today, now) {
			count++
		}
	}

	s.metrics.OverdueSweep("ok", count, time.Since(start))
	log.Info().Int("candidates", len(candidates)).Int("transitioned", count).Msg("overdue sweep finished")
	return count, nil
}

var sweepable = []domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusViewed}

func (s *SweepService) sweepOne(ctx context.Context, log *zerolog.Logger, inv *domain.Invoice, today, now time.Time) bool {
	l := log.With().Str("invoice_id", inv.ID.String()).Logger()
	if !slices.Contains(sweepable, inv.Status) || !inv.DueDate.Before(today) {
		return false
	}

	ictx, cancel := context.WithTimeout(ctx, perInvoiceTimeout)
	defer cancel()

	// Any sweepable status qualifies, so a sent->viewed move after the
	// candidate query does not cost the invoice its overdue transition.
	_, err := s.invoices.TransitionInvoice(ictx, domain.TransitionParams{
		InvoiceID: inv.ID,
		From:      sweepable,
		To:        domain.InvoiceStatusOverdue,
		At:        now,
	})
	switch {
	case errors.Is(err, domain.ErrStatusConflict), errors.Is(err, domain.ErrInvoiceNotFound):
		s.metrics.TransitionConflict(string(domain.EventOverdue))
		l.Debug().Msg("invoice changed before the sweep reached it")
		return false
	case err != nil:
		l.Error().Err(err).Msg("failed to mark invoice overdue")
		return false
	}
	s.metrics.Transitioned(string(inv.Status), string(domain.InvoiceStatusOverdue))

	clientName := unknownClientName
	client, err := s.clients.GetClient(ictx, inv.UserID, inv.ClientID)
	if err != nil {
		l.Warn().Err(err).Str("client_id", inv.ClientID.String()).Msg("overdue invoice has no readable client")
	} else {
		clientName = client.Name
	}

	if _, err := s.notifications.Emit(ictx, domain.EmitParams{
		UserID:    inv.UserID,
		Type:      domain.NotificationOverdueReminder,
		Message:   fmt.Sprintf("Invoice %s to %s is now overdue.", inv.InvoiceNumber, clientName),
		RelatedID: &inv.ID,
	}); err != nil {
		l.Error().Err(err).Msg("failed to emit overdue notification")
	}

	if s.queue != nil && client != nil {
		if _, err := jobs.EnqueueInvoiceOverdueEmail(ictx, s.queue, inv.ID, now); err != nil {
			l.Error().Err(err).Msg("failed to enqueue overdue email")
		} else {
			s.metrics.JobEnqueued(jobs.JobTypeInvoiceOverdue)
		}
	}
	return true
}

// HandleMarkOverdueJob runs the sweep for the worker.
func (s *SweepService) HandleMarkOverdueJob(ctx context.Context, job *jobs.Job) error {
	_, err := s.RunOverdueSweep(ctx, s.clock.Now())
	return err
}

// CleanupFinishedJobs returns the handler that purges old finished jobs.
func CleanupFinishedJobs(store jobs.Store, clk clock.Clock, logger zerolog.Logger) func(context.Context, *jobs.Job) error {
	if clk == nil {
		clk = clock.Real{}
	}
	return func(ctx context.Context, job *jobs.Job) error {
		n, err := store.DeleteFinishedJobsBefore(ctx, clk.Now().Add(-jobs.FinishedJobRetention))
		if err != nil {
			return fmt.Errorf("failed to delete finished jobs: %w", err)
		}
		logFrom(ctx, logger).Info().Int64("deleted", n).Msg("finished jobs purged")
		return nil
	}
}
