package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/ledgerly/internal/domain"
)

var testOwner = uuid.MustParse("7b0a8a0e-1f5e-4f61-9d3b-3a8a2f3c4d5e")

// newRequest builds a request as RequireAuth would hand it on, with the
// path values a ServeMux pattern would have set.
func newRequest(method, target, body string, pathValues ...string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	ctx := domain.NewContextWithPrincipal(req.Context(), &domain.Principal{UserID: testOwner})
	req = req.WithContext(ctx)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req
}

// stubInvoices records calls and answers from canned fields.
type stubInvoices struct {
	invoice  *domain.Invoice
	list     []domain.Invoice
	link     string
	err      error
	viewErr  error
	created  domain.CreateInvoiceParams
	patch    domain.InvoicePatch
	filter   domain.InvoiceFilter
	viewed   []uuid.UUID
	lastUser uuid.UUID
	summary  *domain.InvoiceSummary
}

func (s *stubInvoices) CreateInvoice(ctx context.Context, p domain.CreateInvoiceParams) (*domain.Invoice, error) {
	s.created = p
	s.lastUser = p.OwnerID
	return s.invoice, s.err
}

func (s *stubInvoices) GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*domain.Invoice, error) {
	s.lastUser = ownerID
	return s.invoice, s.err
}

func (s *stubInvoices) ListInvoices(ctx context.Context, ownerID uuid.UUID, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	s.lastUser = ownerID
	s.filter = f
	return s.list, s.err
}

func (s *stubInvoices) UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, p domain.InvoicePatch) (*domain.Invoice, error) {
	s.patch = p
	return s.invoice, s.err
}

func (s *stubInvoices) UpdateInvoiceItems(ctx context.Context, ownerID, id uuid.UUID, items []domain.InvoiceItem) (*domain.Invoice, error) {
	return s.invoice, s.err
}

func (s *stubInvoices) DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.err
}

func (s *stubInvoices) GeneratePDF(ctx context.Context, ownerID, id uuid.UUID) (*domain.Invoice, error) {
	return s.invoice, s.err
}

func (s *stubInvoices) IssuePaymentLink(ctx context.Context, ownerID, id uuid.UUID) (string, error) {
	return s.link, s.err
}

func (s *stubInvoices) Send(ctx context.Context, ownerID, id uuid.UUID) (*domain.Invoice, error) {
	return s.invoice, s.err
}

func (s *stubInvoices) MarkViewed(ctx context.Context, id uuid.UUID) error {
	s.viewed = append(s.viewed, id)
	return s.viewErr
}

func (s *stubInvoices) ConfirmPayment(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	return true, s.err
}

func (s *stubInvoices) ListPayments(ctx context.Context, ownerID uuid.UUID) ([]domain.Invoice, error) {
	return s.list, s.err
}

func (s *stubInvoices) Dashboard(ctx context.Context, ownerID uuid.UUID) (*domain.InvoiceSummary, error) {
	s.lastUser = ownerID
	return s.summary, s.err
}

type stubNotifications struct {
	list    *domain.NotificationList
	limit   int
	updated int64
	err     error
}

func (s *stubNotifications) Emit(ctx context.Context, p domain.EmitParams) (*domain.Notification, error) {
	return nil, s.err
}

func (s *stubNotifications) List(ctx context.Context, ownerID uuid.UUID, limit int) (*domain.NotificationList, error) {
	s.limit = limit
	return s.list, s.err
}

func (s *stubNotifications) MarkRead(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.err
}

func (s *stubNotifications) MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return s.updated, s.err
}

type stubClients struct {
	client  *domain.Client
	list    []domain.Client
	created domain.CreateClientParams
	patch   domain.ClientPatch
	err     error
}

func (s *stubClients) CreateClient(ctx context.Context, p domain.CreateClientParams) (*domain.Client, error) {
	s.created = p
	return s.client, s.err
}

func (s *stubClients) GetClient(ctx context.Context, ownerID, id uuid.UUID) (*domain.Client, error) {
	return s.client, s.err
}

func (s *stubClients) ListClients(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error) {
	return s.list, s.err
}

func (s *stubClients) UpdateClient(ctx context.Context, ownerID, id uuid.UUID, p domain.ClientPatch) (*domain.Client, error) {
	s.patch = p
	return s.client, s.err
}

func (s *stubClients) DeleteClient(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.err
}

type stubAccounts struct {
	account  *domain.Account
	pair     *domain.TokenPair
	register domain.RegisterParams
	err      error
}

func (s *stubAccounts) Register(ctx context.Context, p domain.RegisterParams) (*domain.Account, *domain.TokenPair, error) {
	s.register = p
	return s.account, s.pair, s.err
}

func (s *stubAccounts) Login(ctx context.Context, email, password string) (*domain.Account, *domain.TokenPair, error) {
	return s.account, s.pair, s.err
}

func (s *stubAccounts) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.account, s.err
}

func (s *stubAccounts) Refresh(ctx context.Context, token string) (*domain.TokenPair, error) {
	return s.pair, s.err
}

type stubSweeper struct {
	n   int
	at  time.Time
	err error
}

func (s *stubSweeper) RunOverdueSweep(ctx context.Context, now time.Time) (int, error) {
	s.at = now
	return s.n, s.err
}
