package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// InvoiceHandler serves invoice CRUD and the lifecycle actions.
type InvoiceHandler struct {
	invoices domain.InvoiceService
}

func NewInvoiceHandler(invoices domain.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

type itemRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createInvoiceRequest struct {
	ClientID  uuid.UUID     `json:"client_id" validate:"required"`
	ProjectID *uuid.UUID    `json:"project_id"`
	IssueDate *Date         `json:"issue_date"`
	DueDate   *Date         `json:"due_date" validate:"required"`
	Currency  string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Notes     string        `json:"notes" validate:"max=5000"`
	Items     []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateInvoiceRequest struct {
	ClientID  *uuid.UUID    `json:"client_id"`
	ProjectID *uuid.UUID    `json:"project_id"`
	IssueDate *Date         `json:"issue_date"`
	DueDate   *Date         `json:"due_date"`
	Currency  *string       `json:"currency" validate:"omitempty,len=3,alpha"`
	Notes     *string       `json:"notes" validate:"omitempty,max=5000"`
	Items     []itemRequest `json:"items" validate:"omitempty,dive"`
}

var invoiceFields = domain.InvoiceMutableFields

type itemResponse struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type invoiceResponse struct {
	ID             uuid.UUID      `json:"id"`
	ClientID       uuid.UUID      `json:"client_id"`
	ProjectID      *uuid.UUID     `json:"project_id,omitempty"`
	InvoiceNumber  string         `json:"invoice_number"`
	IssueDate      Date           `json:"issue_date"`
	DueDate        Date           `json:"due_date"`
	Status         string         `json:"status"`
	TotalAmount    string         `json:"total_amount"`
	Currency       string         `json:"currency"`
	Items          []itemResponse `json:"items"`
	Notes          string         `json:"notes,omitempty"`
	PDFURL         *string        `json:"pdf_url"`
	PaymentLinkURL *string        `json:"payment_link_url"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	items := make([]itemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = itemResponse{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice.String(),
			Total:       it.DisplayTotal().StringFixed(domain.MinorUnitPlaces),
		}
	}
	return invoiceResponse{
		ID:             inv.ID,
		ClientID:       inv.ClientID,
		ProjectID:      inv.ProjectID,
		InvoiceNumber:  inv.InvoiceNumber,
		IssueDate:      Date{inv.IssueDate},
		DueDate:        Date{inv.DueDate},
		Status:         string(inv.Status),
		TotalAmount:    inv.TotalAmount.StringFixed(domain.MinorUnitPlaces),
		Currency:       inv.Currency,
		Items:          items,
		Notes:          inv.Notes,
		PDFURL:         inv.PDFURL,
		PaymentLinkURL: inv.PaymentLinkURL,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func toInvoiceList(list []domain.Invoice) []invoiceResponse {
	out := make([]invoiceResponse, len(list))
	for i := range list {
		out[i] = toInvoiceResponse(&list[i])
	}
	return out
}

func toItems(reqs []itemRequest) []domain.InvoiceItem {
	if reqs == nil {
		return nil
	}
	items := make([]domain.InvoiceItem, len(reqs))
	for i, it := range reqs {
		items[i] = domain.InvoiceItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return items
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

// List handles GET /api/invoices?status=
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	var filter domain.InvoiceFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.InvoiceStatus(s)
		filter.Status = &status
	}

	list, err := h.invoices.ListInvoices(r.Context(), ownerID, filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toInvoiceList(list))
}

// Create handles POST /api/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	var req createInvoiceRequest
	if err := decode(r, "invoice.create", invoiceFields, domain.InvoiceServerFields, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	params := domain.CreateInvoiceParams{
		OwnerID:   ownerID,
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		DueDate:   req.DueDate.Time,
		Currency:  req.Currency,
		Items:     toItems(req.Items),
		Notes:     req.Notes,
	}
	if req.IssueDate != nil {
		params.IssueDate = req.IssueDate.Time
	}

	inv, err := h.invoices.CreateInvoice(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

// Get handles GET /api/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	inv, err := h.invoices.GetInvoice(r.Context(), ownerID, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// Update handles PUT /api/invoices/{id}
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	var req updateInvoiceRequest
	if err := decode(r, "invoice.update", invoiceFields, domain.InvoiceServerFields, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	inv, err := h.invoices.UpdateInvoice(r.Context(), ownerID, id, domain.InvoicePatch{
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		IssueDate: datePtr(req.IssueDate),
		DueDate:   datePtr(req.DueDate),
		Currency:  req.Currency,
		Notes:     req.Notes,
		Items:     toItems(req.Items),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// Delete handles DELETE /api/invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	if err := h.invoices.DeleteInvoice(r.Context(), ownerID, id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GeneratePDF handles POST /api/invoices/{id}/generate-pdf
func (h *InvoiceHandler) GeneratePDF(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	inv, err := h.invoices.GeneratePDF(r.Context(), ownerID, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]string{"pdf_url": *inv.PDFURL})
}

// CreatePaymentLink handles POST /api/invoices/{id}/create-payment-link
func (h *InvoiceHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	url, err := h.invoices.IssuePaymentLink(r.Context(), ownerID, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]string{"payment_link_url": url})
}

// Send handles POST /api/invoices/{id}/send
func (h *InvoiceHandler) Send(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	inv, err := h.invoices.Send(r.Context(), ownerID, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// MarkViewed handles POST /api/invoices/{id}/viewed. The ownership check
// comes first since the transition itself is not owner-scoped.
func (h *InvoiceHandler) MarkViewed(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.invoices.GetInvoice(ctx, ownerID, id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := h.invoices.MarkViewed(ctx, id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	inv, err := h.invoices.GetInvoice(ctx, ownerID, id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// ListPayments handles GET /api/payments
func (h *InvoiceHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	list, err := h.invoices.ListPayments(r.Context(), ownerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toInvoiceList(list))
}

type revenueDay struct {
	Date   Date   `json:"date"`
	Amount string `json:"amount"`
}

type dashboardResponse struct {
	InvoiceCounts map[string]int64 `json:"invoice_counts"`
	ClientCount   int64            `json:"client_count"`
	RevenueSince  Date             `json:"revenue_since"`
	RevenueTotal  string           `json:"revenue_total"`
	Revenue       []revenueDay     `json:"revenue"`
}

func toDashboardResponse(sum *domain.InvoiceSummary) dashboardResponse {
	resp := dashboardResponse{
		InvoiceCounts: make(map[string]int64, len(domain.InvoiceStatuses)),
		ClientCount:   sum.ClientCount,
		RevenueSince:  Date{sum.Since},
		Revenue:       make([]revenueDay, len(sum.Revenue)),
	}
	for _, st := range domain.InvoiceStatuses {
		resp.InvoiceCounts[string(st)] = sum.StatusCounts[st]
	}
	total := decimal.Zero
	for i, day := range sum.Revenue {
		resp.Revenue[i] = revenueDay{Date: Date{day.Day}, Amount: day.Amount.StringFixed(domain.MinorUnitPlaces)}
		total = total.Add(day.Amount)
	}
	resp.RevenueTotal = total.StringFixed(domain.MinorUnitPlaces)
	return resp
}

// Dashboard handles GET /api/dashboard
func (h *InvoiceHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	sum, err := h.invoices.Dashboard(r.Context(), ownerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, toDashboardResponse(sum))
}
