package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice-related domain errors.
var (
	ErrInvoiceNotFound         = &Error{Code: ENOTFOUND, Message: "Invoice not found"}
	ErrInvoiceNotDraft         = &Error{Code: EINVALIDSTATE, Message: "Invoice must be in draft status"}
	ErrInvoiceNotEditable      = &Error{Code: EINVALIDSTATE, Message: "Invoice can only be edited while draft or sent"}
	ErrInvoiceMissingArtifacts = &Error{Code: EINVALIDSTATE, Message: "Invoice needs a PDF and a payment link before it can be sent"}
	ErrInvoiceAlreadyPaid      = &Error{Code: EINVALIDSTATE, Message: "Invoice already paid"}
	ErrInvoiceTotalNotPositive = &Error{Code: EINVALID, Message: "Invoice total must be greater than zero"}
	ErrInvoiceNumberGeneration = &Error{Code: EINTERNAL, Message: "Failed to generate invoice number"}

	// ErrStatusConflict is returned by stores when a conditional status
	// update matched no row because another writer moved the invoice first.
	ErrStatusConflict = &Error{Code: EINVALIDSTATE, Message: "Invoice status changed concurrently"}
)

// InvoiceItem is one billed line. LineTotal is never rounded before summation.
type InvoiceItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// LineTotal returns quantity * unit price, exact.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// DisplayTotal returns the line total rounded to the currency minor unit.
func (i InvoiceItem) DisplayTotal() decimal.Decimal {
	return i.LineTotal().Round(MinorUnitPlaces)
}

// Invoice is the aggregate driven by the state machine in status.go.
type Invoice struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ClientID         uuid.UUID
	ProjectID        *uuid.UUID
	InvoiceNumber    string
	IssueDate        time.Time
	DueDate          time.Time
	Status           InvoiceStatus
	TotalAmount      decimal.Decimal
	Currency         string
	Items            []InvoiceItem
	Notes            string
	PDFURL           *string
	PaymentLinkURL   *string
	PaymentLinkID    *string
	PaymentReference *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPaymentLink reports whether a payment link is already bound.
func (inv *Invoice) HasPaymentLink() bool {
	return inv.PaymentLinkURL != nil && *inv.PaymentLinkURL != ""
}

// HasPDF reports whether a rendered PDF has been uploaded.
func (inv *Invoice) HasPDF() bool {
	return inv.PDFURL != nil && *inv.PDFURL != ""
}

// SetItems replaces the items and recomputes the total.
func (inv *Invoice) SetItems(items []InvoiceItem) error {
	total, err := CalculateTotal(items)
	if err != nil {
		return err
	}
	inv.Items = items
	inv.TotalAmount = total
	return nil
}

// FormatInvoiceNumber renders INV-YYYYMMDD-NNN for an owner's nth invoice of the day.
func FormatInvoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%03d", day.UTC().Format("20060102"), seq)
}

// DateOnly truncates t to midnight UTC. Invoice dates are calendar dates.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	Status *InvoiceStatus
}

// TransitionParams describes one compare-and-set status change.
type TransitionParams struct {
	InvoiceID uuid.UUID
	From      []InvoiceStatus
	To        InvoiceStatus
	At        time.Time

	// PaymentReference is recorded when To is paid.
	PaymentReference *string
}

// InvoiceStore persists invoices. Every status change goes through
// TransitionInvoice, which only succeeds while the row is still in one of
// the expected prior statuses.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	NextInvoiceSequence(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error)

	// GetInvoice loads an invoice without owner scoping (webhook, sweep, jobs).
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceForOwner(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, ownerID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)
	ListPaidInvoices(ctx context.Context, ownerID uuid.UUID) ([]Invoice, error)

	// UpdateInvoiceContent writes the editable fields and total, conditional
	// on the invoice still being in one of the given statuses.
	UpdateInvoiceContent(ctx context.Context, inv *Invoice, allowed []InvoiceStatus) error
	TransitionInvoice(ctx context.Context, params TransitionParams) (*Invoice, error)
	SetInvoicePDF(ctx context.Context, id uuid.UUID, url string, at time.Time) error

	// BindPaymentLink stores a link only if none is bound yet and reports
	// whether this call won.
	BindPaymentLink(ctx context.Context, id uuid.UUID, url, linkID string, at time.Time) (bool, error)
	DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error

	// ListOverdueCandidates returns sent or viewed invoices due strictly before today.
	ListOverdueCandidates(ctx context.Context, today time.Time) ([]Invoice, error)

	// Summary counts an owner's invoices per status and clients, and sums
	// paid totals per day from since onward.
	Summary(ctx context.Context, ownerID uuid.UUID, since time.Time) (*InvoiceSummary, error)
}

// InvoiceService manages the invoice lifecycle for an owner.
type InvoiceService interface {
	// CreateInvoice creates a draft invoice with a freshly allocated number.
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// GetInvoice retrieves an owner's invoice.
	GetInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID) (*Invoice, error)

	// ListInvoices lists an owner's invoices, newest first.
	ListInvoices(ctx context.Context, ownerID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// UpdateInvoice applies an allow-listed patch while the invoice is draft or sent.
	UpdateInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID, patch InvoicePatch) (*Invoice, error)

	// UpdateInvoiceItems replaces items and recomputes the total.
	UpdateInvoiceItems(ctx context.Context, ownerID, invoiceID uuid.UUID, items []InvoiceItem) (*Invoice, error)

	// DeleteInvoice hard-deletes an owner's invoice.
	DeleteInvoice(ctx context.Context, ownerID, invoiceID uuid.UUID) error

	// GeneratePDF renders and uploads the invoice PDF and records its URL.
	GeneratePDF(ctx context.Context, ownerID, invoiceID uuid.UUID) (*Invoice, error)

	// IssuePaymentLink returns the bound payment link, creating one if needed.
	IssuePaymentLink(ctx context.Context, ownerID, invoiceID uuid.UUID) (string, error)

	// Send moves a ready draft to sent and queues the client email.
	Send(ctx context.Context, ownerID, invoiceID uuid.UUID) (*Invoice, error)

	// MarkViewed moves a sent invoice to viewed. No-op in any other status.
	MarkViewed(ctx context.Context, invoiceID uuid.UUID) error

	// ConfirmPayment moves a sent, viewed or overdue invoice to paid.
	// Returns false without error if the invoice was already paid.
	ConfirmPayment(ctx context.Context, invoiceID uuid.UUID, paymentReference string) (bool, error)

	// ListPayments lists an owner's paid invoices, most recently paid first.
	ListPayments(ctx context.Context, ownerID uuid.UUID) ([]Invoice, error)

	// Dashboard summarizes an owner's invoices over the trailing revenue window.
	Dashboard(ctx context.Context, ownerID uuid.UUID) (*InvoiceSummary, error)
}

// DashboardWindowDays is how far back dashboard revenue reaches.
const DashboardWindowDays = 90

// InvoiceSummary backs the owner dashboard.
type InvoiceSummary struct {
	StatusCounts map[InvoiceStatus]int64
	ClientCount  int64
	Since        time.Time
	Revenue      []DailyRevenue
}

// DailyRevenue is the paid total for one day. Paid day is the day the
// invoice last changed, which for a paid invoice is the payment day.
type DailyRevenue struct {
	Day    time.Time
	Amount decimal.Decimal
}

// CreateInvoiceParams contains parameters for creating an invoice.
type CreateInvoiceParams struct {
	OwnerID   uuid.UUID
	ClientID  uuid.UUID
	ProjectID *uuid.UUID
	IssueDate time.Time
	DueDate   time.Time
	Currency  string
	Items     []InvoiceItem
	Notes     string
}

// InvoicePatch holds the allow-listed editable invoice fields. Nil means unchanged.
type InvoicePatch struct {
	ClientID  *uuid.UUID
	ProjectID *uuid.UUID
	IssueDate *time.Time
	DueDate   *time.Time
	Currency  *string
	Notes     *string
	Items     []InvoiceItem
}
