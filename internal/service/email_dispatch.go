package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/email"
	"github.com/dukerupert/ledgerly/internal/jobs"
	"github.com/dukerupert/ledgerly/internal/telemetry"
)

const bodyPreviewLength = 200

// Mailer composes and delivers templated email. Implemented by *email.Service.
type Mailer interface {
	Compose(to string, data email.EmailTemplate) (*email.Email, error)
	Deliver(ctx context.Context, msg *email.Email) (string, error)
}

// EmailDispatcher runs the email jobs. Each attempt writes one email log row.
type EmailDispatcher struct {
	invoices domain.InvoiceStore
	clients  domain.ClientStore
	accounts domain.AccountStore
	logs     domain.EmailLogStore
	mailer   Mailer
	clock    clock.Clock
	metrics  *telemetry.BusinessMetrics
	logger   zerolog.Logger
}

func NewEmailDispatcher(invoices domain.InvoiceStore, clients domain.ClientStore, accounts domain.AccountStore, logs domain.EmailLogStore, mailer Mailer, clk clock.Clock, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *EmailDispatcher {
	if clk == nil {
		clk = clock.Real{}
	}
	return &EmailDispatcher{
		invoices: invoices,
		clients:  clients,
		accounts: accounts,
		logs:     logs,
		mailer:   mailer,
		clock:    clk,
		metrics:  metrics,
		logger:   logger.With().Str("component", "email_dispatch").Logger(),
	}
}

func (d *EmailDispatcher) HandleInvoiceSent(ctx context.Context, job *jobs.Job) error {
	return d.dispatch(ctx, job, func(data email.InvoiceEmail) email.EmailTemplate {
		return email.InvoiceSentEmail{InvoiceEmail: data}
	}, nil)
}

func (d *EmailDispatcher) HandleInvoiceOverdue(ctx context.Context, job *jobs.Job) error {
	return d.dispatch(ctx, job, func(data email.InvoiceEmail) email.EmailTemplate {
		return email.InvoiceOverdueEmail{InvoiceEmail: data}
	}, func(inv *domain.Invoice) bool {
		// Paid between the sweep and this job: no reminder.
		return inv.Status == domain.InvoiceStatusOverdue
	})
}

func (d *EmailDispatcher) dispatch(ctx context.Context, job *jobs.Job, build func(email.InvoiceEmail) email.EmailTemplate, stillDue func(*domain.Invoice) bool) error {
	var payload jobs.InvoiceEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode email payload: %w", err)
	}
	log := logFrom(ctx, d.logger).With().Str("invoice_id", payload.InvoiceID.String()).Logger()

	inv, err := d.invoices.GetInvoice(ctx, payload.InvoiceID)
	if errors.Is(err, domain.ErrInvoiceNotFound) {
		log.Warn().Msg("invoice deleted before its email was sent")
		return nil
	}
	if err != nil {
		return err
	}
	if stillDue != nil && !stillDue(inv) {
		log.Info().Str("status", string(inv.Status)).Msg("email no longer relevant")
		return nil
	}

	client, err := d.clients.GetClient(ctx, inv.UserID, inv.ClientID)
	if errors.Is(err, domain.ErrClientNotFound) {
		log.Warn().Str("client_id", inv.ClientID.String()).Msg("invoice client missing, email skipped")
		return nil
	}
	if err != nil {
		return err
	}

	fromName := ""
	if acct, err := d.accounts.GetAccount(ctx, inv.UserID); err == nil {
		fromName = acct.DisplayName()
	}

	tmpl := build(invoiceEmailData(inv, client, fromName))
	msg, err := d.mailer.Compose(client.Email, tmpl)
	if err != nil {
		return fmt.Errorf("failed to compose %s: %w", tmpl.TemplateName(), err)
	}

	_, sendErr := d.mailer.Deliver(ctx, msg)
	d.metrics.Email(tmpl.TemplateName(), sendErr)

	status := domain.EmailLogSent
	if sendErr != nil {
		status = domain.EmailLogFailed
	}
	entry := &domain.EmailLog{
		ID:               uuid.New(),
		UserID:           inv.UserID,
		Recipient:        client.Email,
		Subject:          msg.Subject,
		BodyPreview:      preview(msg.TextBody, bodyPreviewLength),
		Status:           status,
		RelatedInvoiceID: &inv.ID,
		CreatedAt:        d.clock.Now(),
	}
	if err := d.logs.CreateEmailLog(ctx, entry); err != nil {
		log.Error().Err(err).Msg("failed to write email log")
	}

	if sendErr != nil {
		return fmt.Errorf("failed to deliver %s: %w", tmpl.TemplateName(), sendErr)
	}
	log.Info().Str("template", tmpl.TemplateName()).Str("recipient", client.Email).Msg("invoice email sent")
	return nil
}

func invoiceEmailData(inv *domain.Invoice, client *domain.Client, fromName string) email.InvoiceEmail {
	data := email.InvoiceEmail{
		ClientName:    client.Name,
		FromName:      fromName,
		InvoiceNumber: inv.InvoiceNumber,
		Total:         formatMoney(inv),
		DueDate:       inv.DueDate.Format("January 2, 2006"),
	}
	if inv.HasPaymentLink() {
		data.PaymentLinkURL = *inv.PaymentLinkURL
	}
	if inv.HasPDF() {
		data.PDFURL = *inv.PDFURL
	}
	return data
}

// preview cuts s to at most n runes.
func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
