package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/billing"
	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/jobs"
	"github.com/dukerupert/ledgerly/internal/pdf"
	"github.com/dukerupert/ledgerly/internal/storage"
	"github.com/dukerupert/ledgerly/internal/telemetry"
)

// DefaultCurrency applies when an invoice is created without one.
const DefaultCurrency = "USD"

// InvoiceDeps are the collaborators of InvoiceService.
type InvoiceDeps struct {
	Invoices      domain.InvoiceStore
	Clients       domain.ClientStore
	Accounts      domain.AccountStore
	Notifications domain.NotificationService
	Billing       billing.Provider
	Renderer      pdf.Renderer
	Storage       storage.Storage
	Queue         jobs.Queue
	Clock         clock.Clock
	Metrics       *telemetry.BusinessMetrics
	Logger        zerolog.Logger

	// PaymentSuccessURL is where the payment page redirects after payment.
	PaymentSuccessURL string
}

// InvoiceService drives owner-initiated invoice operations.
type InvoiceService struct {
	invoices      domain.InvoiceStore
	clients       domain.ClientStore
	accounts      domain.AccountStore
	notifications domain.NotificationService
	billing       billing.Provider
	renderer      pdf.Renderer
	storage       storage.Storage
	queue         jobs.Queue
	clock         clock.Clock
	metrics       *telemetry.BusinessMetrics
	logger        zerolog.Logger
	successURL    string
}

var _ domain.InvoiceService = (*InvoiceService)(nil)

func NewInvoiceService(deps InvoiceDeps) (*InvoiceService, error) {
	switch {
	case deps.Invoices == nil:
		return nil, errors.New("invoice store is required")
	case deps.Clients == nil:
		return nil, errors.New("client store is required")
	case deps.Notifications == nil:
		return nil, errors.New("notification service is required")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return &InvoiceService{
		invoices:      deps.Invoices,
		clients:       deps.Clients,
		accounts:      deps.Accounts,
		notifications: deps.Notifications,
		billing:       deps.Billing,
		renderer:      deps.Renderer,
		storage:       deps.Storage,
		queue:         deps.Queue,
		clock:         clk,
		metrics:       deps.Metrics,
		logger:        deps.Logger.With().Str("component", "invoices").Logger(),
		successURL:    deps.PaymentSuccessURL,
	}, nil
}

func normalizeCurrency(ve *domain.ValidationError, c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	if len(c) != 3 {
		ve.Add("currency", "must be a three-letter ISO 4217 code")
	}
	return c
}

func checkDates(ve *domain.ValidationError, issue, due time.Time) {
	if due.IsZero() {
		ve.Add("due_date", "due date is required")
		return
	}
	if due.Before(issue) {
		ve.Add("due_date", "due date must not be before the issue date")
	}
}

// CreateInvoice creates a draft with a freshly allocated number.
func (s *InvoiceService) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.create"
	now := s.clock.Now()

	ve := &domain.ValidationError{Op: op}
	issue := domain.DateOnly(now)
	if !params.IssueDate.IsZero() {
		issue = domain.DateOnly(params.IssueDate)
	}
	due := params.DueDate
	if !due.IsZero() {
		due = domain.DateOnly(due)
	}
	checkDates(ve, issue, due)
	currency := normalizeCurrency(ve, params.Currency)

	total, err := domain.CalculateTotal(params.Items)
	if err := mergeValidation(ve, err); err != nil {
		return nil, err
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if _, err := s.clients.GetClient(ctx, params.OwnerID, params.ClientID); err != nil {
		return nil, withOp(err, op)
	}

	seq, err := s.invoices.NextInvoiceSequence(ctx, params.OwnerID, now)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to allocate invoice number")
	}

	inv := &domain.Invoice{
		ID:            uuid.New(),
		UserID:        params.OwnerID,
		ClientID:      params.ClientID,
		ProjectID:     params.ProjectID,
		InvoiceNumber: domain.FormatInvoiceNumber(now, seq),
		IssueDate:     issue,
		DueDate:       due,
		Status:        domain.InvoiceStatusDraft,
		TotalAmount:   total,
		Currency:      currency,
		Items:         params.Items,
		Notes:         params.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.invoices.CreateInvoice(ctx, inv); err != nil {
		return nil, withOp(err, op)
	}

	s.metrics.InvoiceCreated()
	logFrom(ctx, s.logger).Info().
		Str("invoice_id", inv.ID.String()).
		Str("invoice_number", inv.InvoiceNumber).
		Str("total", inv.TotalAmount.String()).
		Msg("invoice created")
	return inv, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	return s.invoices.GetInvoiceForOwner(ctx, ownerID, invoiceID)
}

func (s *InvoiceService) ListInvoices(ctx context.Context, ownerID uuid.UUID, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, domain.NewValidationError("invoice.list", "status", "unknown invoice status")
	}
	return s.invoices.ListInvoices(ctx, ownerID, filter)
}

// UpdateInvoice applies patch while the invoice is still editable. The
// write is conditional on the status observed here.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID, patch domain.InvoicePatch) (*domain.Invoice, error) {
	const op = "invoice.update"

	inv, err := s.invoices.GetInvoiceForOwner(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(domain.EditableStatuses, inv.Status) {
		return nil, withOp(domain.ErrInvoiceNotEditable, op)
	}

	ve := &domain.ValidationError{Op: op}
	if patch.ClientID != nil && *patch.ClientID != inv.ClientID {
		if _, err := s.clients.GetClient(ctx, ownerID, *patch.ClientID); err != nil {
			if !errors.Is(err, domain.ErrClientNotFound) {
				return nil, err
			}
			ve.Add("client_id", "client not found")
		}
		inv.ClientID = *patch.ClientID
	}
	if patch.ProjectID != nil {
		inv.ProjectID = patch.ProjectID
	}
	if patch.IssueDate != nil {
		inv.IssueDate = domain.DateOnly(*patch.IssueDate)
	}
	if patch.DueDate != nil {
		inv.DueDate = domain.DateOnly(*patch.DueDate)
	}
	if patch.IssueDate != nil || patch.DueDate != nil {
		checkDates(ve, inv.IssueDate, inv.DueDate)
	}
	if patch.Currency != nil {
		inv.Currency = normalizeCurrency(ve, *patch.Currency)
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	if patch.Items != nil {
		if err := mergeValidation(ve, inv.SetItems(patch.Items)); err != nil {
			return nil, err
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	inv.UpdatedAt = s.clock.Now()
	if err := s.invoices.UpdateInvoiceContent(ctx, inv, domain.EditableStatuses); err != nil {
		return nil, withOp(err, op)
	}
	return inv, nil
}

// UpdateInvoiceItems replaces the items and recomputes the total.
func (s *InvoiceService) UpdateInvoiceItems(ctx context.Context, ownerID, invoiceID uuid.UUID, items []domain.InvoiceItem) (*domain.Invoice, error) {
	if items == nil {
		items = []domain.InvoiceItem{}
	}
	return s.UpdateInvoice(ctx, ownerID, invoiceID, domain.InvoicePatch{Items: items})
}

func (s *InvoiceService) DeleteInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID) error {
	if err := s.invoices.DeleteInvoice(ctx, ownerID, invoiceID); err != nil {
		return withOp(err, "invoice.delete")
	}
	logFrom(ctx, s.logger).Info().Str("invoice_id", invoiceID.String()).Msg("invoice deleted")
	return nil
}

// GeneratePDF renders, uploads and then records the PDF URL. The URL is
// written only after the upload is confirmed.
func (s *InvoiceService) GeneratePDF(ctx context.Context, ownerID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	const op = "invoice.generate_pdf"
	log := logFrom(ctx, s.logger)

	inv, err := s.invoices.GetInvoiceForOwner(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.GetClient(ctx, ownerID, inv.ClientID)
	if err != nil {
		return nil, withOp(err, op)
	}
	var owner *domain.Account
	if s.accounts != nil {
		owner, err = s.accounts.GetAccount(ctx, ownerID)
		if err != nil {
			return nil, withOp(err, op)
		}
	}

	start := time.Now()
	doc := invoiceDocument(inv, client, owner)
	content, err := s.renderer.RenderInvoice(ctx, doc)
	s.metrics.ObserveProvider("pdf", "render", start)
	if err != nil {
		return nil, domain.External(err, op, "Failed to render invoice PDF")
	}

	key := storage.InvoicePDFKey(ownerID, inv.InvoiceNumber)
	start = time.Now()
	url, err := s.storage.Put(ctx, key, bytes.NewReader(content), storage.ContentTypePDF)
	s.metrics.ObserveProvider("storage", "put", start)
	if err != nil {
		return nil, domain.External(err, op, "Failed to upload invoice PDF")
	}

	now := s.clock.Now()
	if err := s.invoices.SetInvoicePDF(ctx, inv.ID, url, now); err != nil {
		// The key is stable per invoice, so an earlier recorded PDF lives at
		// the same key and must survive.
		if !inv.HasPDF() {
			if derr := s.storage.Delete(context.WithoutCancel(ctx), key); derr != nil {
				log.Warn().Err(derr).Str("key", key).Msg("failed to remove unrecorded PDF")
			}
		}
		return nil, withOp(err, op)
	}

	inv.PDFURL = &url
	inv.UpdatedAt = now
	log.Info().Str("invoice_id", inv.ID.String()).Str("pdf_url", url).Msg("invoice PDF generated")
	return inv, nil
}

func invoiceDocument(inv *domain.Invoice, client *domain.Client, owner *domain.Account) pdf.InvoiceDocument {
	doc := pdf.InvoiceDocument{
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssueDate.Format("January 2, 2006"),
		DueDate:       inv.DueDate.Format("January 2, 2006"),
		Status:        string(inv.Status),
		BillToName:    client.Name,
		BillToCompany: client.Company,
		BillToAddress: client.Address,
		BillToEmail:   client.Email,
		Total:         formatMoney(inv),
		Notes:         inv.Notes,
	}
	if owner != nil {
		doc.FromName = owner.DisplayName()
		doc.FromEmail = owner.Email
	}
	if inv.HasPaymentLink() {
		doc.PaymentLinkURL = *inv.PaymentLinkURL
	}
	for _, item := range inv.Items {
		doc.Items = append(doc.Items, pdf.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.StringFixed(domain.MinorUnitPlaces),
			Amount:      item.DisplayTotal().StringFixed(domain.MinorUnitPlaces),
		})
	}
	return doc
}

func formatMoney(inv *domain.Invoice) string {
	return inv.Currency + " " + inv.TotalAmount.StringFixed(domain.MinorUnitPlaces)
}

// IssuePaymentLink returns the bound link, creating one only when none is
// bound. A concurrent binder that loses keeps the winner's link.
func (s *InvoiceService) IssuePaymentLink(ctx context.Context, ownerID, invoiceID uuid.UUID) (string, error) {
	const op = "invoice.issue_payment_link"
	log := logFrom(ctx, s.logger)

	inv, err := s.invoices.GetInvoiceForOwner(ctx, ownerID, invoiceID)
	if err != nil {
		return "", err
	}
	if inv.HasPaymentLink() {
		s.metrics.PaymentLink("reused")
		return *inv.PaymentLinkURL, nil
	}
	switch inv.Status {
	case domain.InvoiceStatusDraft, domain.InvoiceStatusSent:
	case domain.InvoiceStatusPaid:
		return "", withOp(domain.ErrInvoiceAlreadyPaid, op)
	default:
		return "", domain.InvalidState(op, "payment links can only be issued for draft or sent invoices")
	}
	if !inv.TotalAmount.IsPositive() {
		return "", withOp(domain.ErrInvoiceTotalNotPositive, op)
	}

	start := time.Now()
	link, err := s.billing.CreatePaymentLink(ctx, billing.CreatePaymentLinkParams{
		Amount:         inv.TotalAmount,
		Currency:       inv.Currency,
		CorrelationKey: inv.ID.String(),
		Description:    "Invoice " + inv.InvoiceNumber,
		SuccessURL:     s.successURL,
		IdempotencyKey: "invoice_link_" + inv.ID.String(),
	})
	s.metrics.ObserveProvider("stripe", "create_payment_link", start)
	if err != nil {
		s.metrics.PaymentLink("failed")
		log.Error().Err(err).Str("invoice_id", inv.ID.String()).Bool("temporary", billing.IsTemporary(err)).Msg("payment link creation failed")
		if billing.IsTemporary(err) {
			return "", domain.Unavailable(err, op, "Payment provider temporarily unavailable, try again shortly")
		}
		return "", domain.External(err, op, "Payment provider rejected the request")
	}

	won, err := s.invoices.BindPaymentLink(ctx, inv.ID, link.URL, link.ID, s.clock.Now())
	if err != nil {
		return "", withOp(err, op)
	}
	if !won {
		current, err := s.invoices.GetInvoice(ctx, inv.ID)
		if err != nil {
			return "", err
		}
		log.Warn().Str("invoice_id", inv.ID.String()).Str("discarded_link_id", link.ID).
			Msg("payment link already bound by a concurrent request")
		s.metrics.PaymentLink("reused")
		return *current.PaymentLinkURL, nil
	}

	s.metrics.PaymentLink("created")
	log.Info().Str("invoice_id", inv.ID.String()).Str("payment_link_id", link.ID).Msg("payment link bound")
	return link.URL, nil
}

// Send moves a ready draft to sent, then notifies the owner and queues the
// client email. The side effects are best-effort.
func (s *InvoiceService) Send(ctx context.Context, ownerID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	const op = "invoice.send"
	log := logFrom(ctx, s.logger)

	inv, err := s.invoices.GetInvoiceForOwner(ctx, ownerID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvoiceStatusDraft {
		return nil, withOp(domain.ErrInvoiceNotDraft, op)
	}
	if !inv.HasPDF() || !inv.HasPaymentLink() {
		return nil, withOp(domain.ErrInvoiceMissingArtifacts, op)
	}

	from, to := domain.TransitionFrom(domain.EventSend)
	now := s.clock.Now()
	sent, err := s.invoices.TransitionInvoice(ctx, domain.TransitionParams{
		InvoiceID: inv.ID, From: from, To: to, At: now,
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		s.metrics.TransitionConflict(string(domain.EventSend))
		return nil, withOp(domain.ErrInvoiceNotDraft, op)
	}
	if err != nil {
		return nil, withOp(err, op)
	}
	s.metrics.Transitioned(string(inv.Status), string(sent.Status))

	clientName := "your client"
	if client, err := s.clients.GetClient(ctx, ownerID, sent.ClientID); err == nil {
		clientName = client.Name
	}
	if _, err := s.notifications.Emit(ctx, domain.EmitParams{
		UserID:    ownerID,
		Type:      domain.NotificationInvoiceSent,
		Message:   fmt.Sprintf("Invoice %s was sent to %s.", sent.InvoiceNumber, clientName),
		RelatedID: &sent.ID,
	}); err != nil {
		log.Error().Err(err).Str("invoice_id", sent.ID.String()).Msg("failed to emit invoice sent notification")
	}
	if s.queue != nil {
		if _, err := jobs.EnqueueInvoiceSentEmail(ctx, s.queue, sent.ID, now); err != nil {
			log.Error().Err(err).Str("invoice_id", sent.ID.String()).Msg("failed to enqueue invoice email")
		} else {
			s.metrics.JobEnqueued(jobs.JobTypeInvoiceSent)
		}
	}

	log.Info().Str("invoice_id", sent.ID.String()).Str("invoice_number", sent.InvoiceNumber).Msg("invoice sent")
	return sent, nil
}

// MarkViewed moves a sent invoice to viewed and ignores every other status.
func (s *InvoiceService) MarkViewed(ctx context.Context, invoiceID uuid.UUID) error {
	from, to := domain.TransitionFrom(domain.EventView)
	_, err := s.invoices.TransitionInvoice(ctx, domain.TransitionParams{
		InvoiceID: invoiceID, From: from, To: to, At: s.clock.Now(),
	})
	switch {
	case errors.Is(err, domain.ErrStatusConflict):
		return nil
	case err != nil:
		return withOp(err, "invoice.mark_viewed")
	}
	s.metrics.Transitioned(string(domain.InvoiceStatusSent), string(to))
	return nil
}

// ConfirmPayment moves an open invoice to paid and emits one invoice_paid
// notification. An invoice that is already paid is left alone.
func (s *InvoiceService) ConfirmPayment(ctx context.Context, invoiceID uuid.UUID, paymentReference string) (bool, error) {
	const op = "invoice.confirm_payment"
	log := logFrom(ctx, s.logger)

	inv, err := s.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	if inv.Status.Terminal() {
		return false, nil
	}
	if !domain.CanTransition(inv.Status, domain.EventPay) {
		return false, domain.InvalidState(op, "cannot pay an invoice in "+string(inv.Status)+" status")
	}

	from, to := domain.TransitionFrom(domain.EventPay)
	var ref *string
	if paymentReference != "" {
		ref = &paymentReference
	}
	paid, err := s.invoices.TransitionInvoice(ctx, domain.TransitionParams{
		InvoiceID: invoiceID, From: from, To: to, At: s.clock.Now(), PaymentReference: ref,
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		s.metrics.TransitionConflict(string(domain.EventPay))
		current, gerr := s.invoices.GetInvoice(ctx, invoiceID)
		if gerr != nil {
			return false, gerr
		}
		if current.Status.Terminal() {
			return false, nil
		}
		return false, domain.InvalidState(op, "cannot pay an invoice in "+string(current.Status)+" status")
	}
	if err != nil {
		return false, withOp(err, op)
	}

	s.metrics.Transitioned(string(inv.Status), string(paid.Status))
	s.metrics.Revenue(paid.Currency, paid.TotalAmount.InexactFloat64())

	if _, err := s.notifications.Emit(ctx, domain.EmitParams{
		UserID:    paid.UserID,
		Type:      domain.NotificationInvoicePaid,
		Message:   fmt.Sprintf("Invoice %s has been paid (%s).", paid.InvoiceNumber, formatMoney(paid)),
		RelatedID: &paid.ID,
	}); err != nil {
		log.Error().Err(err).Str("invoice_id", paid.ID.String()).Msg("failed to emit invoice paid notification")
	}

	log.Info().
		Str("invoice_id", paid.ID.String()).
		Str("payment_reference", paymentReference).
		Msg("invoice paid")
	return true, nil
}

// ListPayments returns paid invoices, most recently paid first.
func (s *InvoiceService) ListPayments(ctx context.Context, ownerID uuid.UUID) ([]domain.Invoice, error) {
	return s.invoices.ListPaidInvoices(ctx, ownerID)
}

func (s *InvoiceService) Dashboard(ctx context.Context, ownerID uuid.UUID) (*domain.InvoiceSummary, error) {
	since := domain.DateOnly(s.clock.Now()).AddDate(0, 0, -domain.DashboardWindowDays)
	return s.invoices.Summary(ctx, ownerID, since)
}
