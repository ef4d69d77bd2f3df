package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/ledgerly/internal/billing"
	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/email"
	"github.com/dukerupert/ledgerly/internal/jobs"
	"github.com/dukerupert/ledgerly/internal/pdf"
)

// memInvoices implements domain.InvoiceStore with the same compare-and-set
// contract as the Postgres store.
type memInvoices struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]domain.Invoice
	seq     map[string]int64
	failPDF error
	clients *memClients
}

func newMemInvoices() *memInvoices {
	return &memInvoices{rows: map[uuid.UUID]domain.Invoice{}, seq: map[string]int64{}}
}

func cloneInvoice(inv domain.Invoice) *domain.Invoice {
	inv.Items = slices.Clone(inv.Items)
	return &inv
}

func (s *memInvoices) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[inv.ID] = *cloneInvoice(*inv)
	return nil
}

func (s *memInvoices) NextInvoiceSequence(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID.String() + day.UTC().Format(time.DateOnly)
	s.seq[key]++
	return s.seq[key], nil
}

func (s *memInvoices) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (s *memInvoices) GetInvoiceForOwner(ctx context.Context, ownerID, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil || inv.UserID != ownerID {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *memInvoices) ListInvoices(ctx context.Context, ownerID uuid.UUID, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range s.rows {
		if inv.UserID != ownerID || (filter.Status != nil && inv.Status != *filter.Status) {
			continue
		}
		out = append(out, *cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memInvoices) ListPaidInvoices(ctx context.Context, ownerID uuid.UUID) ([]domain.Invoice, error) {
	paid := domain.InvoiceStatusPaid
	out, err := s.ListInvoices(ctx, ownerID, domain.InvoiceFilter{Status: &paid})
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, err
}

func (s *memInvoices) UpdateInvoiceContent(ctx context.Context, inv *domain.Invoice, allowed []domain.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[inv.ID]
	if !ok || cur.UserID != inv.UserID {
		return domain.ErrInvoiceNotFound
	}
	if !slices.Contains(allowed, cur.Status) {
		return domain.ErrInvoiceNotEditable
	}
	next := *cloneInvoice(*inv)
	next.Status = cur.Status
	next.PDFURL, next.PaymentLinkURL, next.PaymentLinkID = cur.PDFURL, cur.PaymentLinkURL, cur.PaymentLinkID
	s.rows[inv.ID] = next
	return nil
}

func (s *memInvoices) TransitionInvoice(ctx context.Context, p domain.TransitionParams) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[p.InvoiceID]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	if !slices.Contains(p.From, cur.Status) {
		return nil, domain.ErrStatusConflict
	}
	cur.Status = p.To
	cur.UpdatedAt = p.At
	if p.PaymentReference != nil {
		cur.PaymentReference = p.PaymentReference
	}
	s.rows[p.InvoiceID] = cur
	return cloneInvoice(cur), nil
}

func (s *memInvoices) SetInvoicePDF(ctx context.Context, id uuid.UUID, url string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPDF != nil {
		return s.failPDF
	}
	cur, ok := s.rows[id]
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	cur.PDFURL = &url
	cur.UpdatedAt = at
	s.rows[id] = cur
	return nil
}

func (s *memInvoices) BindPaymentLink(ctx context.Context, id uuid.UUID, url, linkID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok {
		return false, domain.ErrInvoiceNotFound
	}
	if cur.PaymentLinkID != nil {
		return false, nil
	}
	cur.PaymentLinkURL, cur.PaymentLinkID = &url, &linkID
	cur.UpdatedAt = at
	s.rows[id] = cur
	return true, nil
}

func (s *memInvoices) DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok || cur.UserID != ownerID {
		return domain.ErrInvoiceNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *memInvoices) ListOverdueCandidates(ctx context.Context, today time.Time) ([]domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range s.rows {
		if slices.Contains(sweepable, inv.Status) && inv.DueDate.Before(today) {
			out = append(out, *cloneInvoice(inv))
		}
	}
	return out, nil
}

func (s *memInvoices) Summary(ctx context.Context, ownerID uuid.UUID, since time.Time) (*domain.InvoiceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := &domain.InvoiceSummary{
		StatusCounts: map[domain.InvoiceStatus]int64{},
		Since:        domain.DateOnly(since),
	}
	byDay := map[time.Time]decimal.Decimal{}
	for _, inv := range s.rows {
		if inv.UserID != ownerID {
			continue
		}
		sum.StatusCounts[inv.Status]++
		if inv.Status == domain.InvoiceStatusPaid && !inv.UpdatedAt.Before(sum.Since) {
			day := domain.DateOnly(inv.UpdatedAt)
			byDay[day] = byDay[day].Add(inv.TotalAmount)
		}
	}
	for day, amount := range byDay {
		sum.Revenue = append(sum.Revenue, domain.DailyRevenue{Day: day, Amount: amount})
	}
	sort.Slice(sum.Revenue, func(i, j int) bool { return sum.Revenue[i].Day.Before(sum.Revenue[j].Day) })
	if s.clients != nil {
		s.clients.mu.Lock()
		for _, c := range s.clients.rows {
			if c.UserID == ownerID {
				sum.ClientCount++
			}
		}
		s.clients.mu.Unlock()
	}
	return sum, nil
}

// put stores inv directly, bypassing the service.
func (s *memInvoices) put(inv domain.Invoice) {
	s.mu.Lock()
	s.rows[inv.ID] = inv
	s.mu.Unlock()
}

func (s *memInvoices) status(id uuid.UUID) domain.InvoiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

type memClients struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Client
}

func newMemClients(cs ...domain.Client) *memClients {
	m := &memClients{rows: map[uuid.UUID]domain.Client{}}
	for _, c := range cs {
		m.rows[c.ID] = c
	}
	return m
}

func (s *memClients) CreateClient(ctx context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[c.ID] = *c
	return nil
}

func (s *memClients) GetClient(ctx context.Context, ownerID, id uuid.UUID) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok || c.UserID != ownerID {
		return nil, domain.ErrClientNotFound
	}
	return &c, nil
}

func (s *memClients) ListClients(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Client
	for _, c := range s.rows {
		if c.UserID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memClients) UpdateClient(ctx context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[c.ID]
	if !ok || cur.UserID != c.UserID {
		return domain.ErrClientNotFound
	}
	s.rows[c.ID] = *c
	return nil
}

func (s *memClients) DeleteClient(ctx context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok || cur.UserID != ownerID {
		return domain.ErrClientNotFound
	}
	delete(s.rows, id)
	return nil
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]domain.Account
}

func newMemAccounts(as ...domain.Account) *memAccounts {
	m := &memAccounts{accounts: map[uuid.UUID]domain.Account{}}
	for _, a := range as {
		m.accounts[a.ID] = a
	}
	return m
}

func (s *memAccounts) CreateAccount(ctx context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.accounts {
		if strings.EqualFold(cur.Email, a.Email) {
			return domain.ErrEmailTaken
		}
	}
	a.IsAdmin = len(s.accounts) == 0
	s.accounts[a.ID] = *a
	return nil
}

func (s *memAccounts) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &a, nil
}

func (s *memAccounts) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type memEmailLogs struct {
	mu   sync.Mutex
	logs []domain.EmailLog
}

func (s *memEmailLogs) CreateEmailLog(ctx context.Context, l *domain.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *l)
	return nil
}

type memWebhookEvents struct {
	mu     sync.Mutex
	events map[string]string
}

func newMemWebhookEvents() *memWebhookEvents {
	return &memWebhookEvents{events: map[string]string{}}
}

func (s *memWebhookEvents) WebhookEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[eventID]
	return ok, nil
}

func (s *memWebhookEvents) RecordWebhookEvent(ctx context.Context, eventID, eventType string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[eventID]; !ok {
		s.events[eventID] = eventType
	}
	return nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []domain.Notification
	fail error
}

func (s *memNotifications) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.rows = append(s.rows, *n)
	return nil
}

func (s *memNotifications) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsRead != out[j].IsRead {
			return !out[i].IsRead
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memNotifications) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.UserID == userID && !row.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *memNotifications) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].UserID == userID {
			s.rows[i].IsRead = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (s *memNotifications) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.rows {
		if s.rows[i].UserID == userID && !s.rows[i].IsRead {
			s.rows[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memNotifications) ofType(t domain.NotificationType) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.rows {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// memQueue implements jobs.Store with dedup-key semantics.
type memQueue struct {
	mu   sync.Mutex
	jobs []jobs.EnqueueParams
	keys map[string]bool
}

func newMemQueue() *memQueue { return &memQueue{keys: map[string]bool{}} }

func (q *memQueue) EnqueueJob(ctx context.Context, p jobs.EnqueueParams) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p.DedupKey != "" {
		if q.keys[p.DedupKey] {
			return false, nil
		}
		q.keys[p.DedupKey] = true
	}
	q.jobs = append(q.jobs, p)
	return true, nil
}

func (q *memQueue) ofType(jobType string) []jobs.EnqueueParams {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []jobs.EnqueueParams
	for _, j := range q.jobs {
		if j.JobType == jobType {
			out = append(out, j)
		}
	}
	return out
}

func (q *memQueue) ClaimNextJob(ctx context.Context, queue, workerID string, now time.Time) (*jobs.Job, error) {
	return nil, nil
}

func (q *memQueue) CompleteJob(ctx context.Context, id uuid.UUID, at time.Time) error { return nil }

func (q *memQueue) FailJob(ctx context.Context, id uuid.UUID, msg string, retryAt time.Time) error {
	return nil
}

func (q *memQueue) DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int64, error) {
	return 3, nil
}

type fakeRenderer struct {
	err   error
	calls int
	last  pdf.InvoiceDocument
}

func (r *fakeRenderer) RenderInvoice(ctx context.Context, doc pdf.InvoiceDocument) ([]byte, error) {
	r.calls++
	r.last = doc
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 fake"), nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string][]byte{}} }

func (s *fakeStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	return s.URL(key), nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) URL(key string) string { return "https://files.test/" + key }

type fakeMailer struct {
	mu      sync.Mutex
	sent    []*email.Email
	sendErr error
}

func (m *fakeMailer) Compose(to string, data email.EmailTemplate) (*email.Email, error) {
	return &email.Email{
		To:       []string{to},
		Subject:  data.Subject(),
		TextBody: "Hello, " + strings.Repeat("x", 300),
	}, nil
}

func (m *fakeMailer) Deliver(ctx context.Context, msg *email.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

var errBoom = errors.New("boom")

// fixture wires every service over in-memory fakes.
type fixture struct {
	clock         *clock.Fake
	invoices      *memInvoices
	clients       *memClients
	accounts      *memAccounts
	emailLogs     *memEmailLogs
	webhookEvents *memWebhookEvents
	notifications *memNotifications
	queue         *memQueue
	provider      *billing.MockProvider
	renderer      *fakeRenderer
	storage       *fakeStorage

	owner  domain.Account
	client domain.Client

	notifier   *NotificationService
	svc        *InvoiceService
	sweep      *SweepService
	reconciler *Reconciler
}

var fixtureStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newFixture(t testing.TB) *fixture {
	return newFixtureWithProvider(t, nil)
}

func newFixtureWithProvider(t testing.TB, provider billing.Provider) *fixture {
	f := &fixture{
		clock:         clock.NewFake(fixtureStart),
		invoices:      newMemInvoices(),
		notifications: &memNotifications{},
		queue:         newMemQueue(),
		provider:      billing.NewMockProvider(),
		renderer:      &fakeRenderer{},
		storage:       newFakeStorage(),
	}
	f.owner = domain.Account{ID: uuid.New(), Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	f.client = domain.Client{ID: uuid.New(), UserID: f.owner.ID, Name: "Acme Corp", Email: "billing@acme.test"}
	f.clients = newMemClients(f.client)
	f.invoices.clients = f.clients
	f.accounts = newMemAccounts(f.owner)
	f.emailLogs = &memEmailLogs{}
	f.webhookEvents = newMemWebhookEvents()
	if provider == nil {
		provider = f.provider
	}

	log := zerolog.Nop()
	f.notifier = NewNotificationService(f.notifications, nil, f.clock, nil, log)
	svc, err := NewInvoiceService(InvoiceDeps{
		Invoices:          f.invoices,
		Clients:           f.clients,
		Accounts:          f.accounts,
		Notifications:     f.notifier,
		Billing:           provider,
		Renderer:          f.renderer,
		Storage:           f.storage,
		Queue:             f.queue,
		Clock:             f.clock,
		Logger:            log,
		PaymentSuccessURL: "https://app.test/paid",
	})
	if err != nil {
		t.Fatalf("NewInvoiceService: %v", err)
	}
	f.svc = svc
	f.sweep = NewSweepService(f.invoices, f.clients, f.notifier, f.queue, f.clock, nil, log)
	f.reconciler = NewReconciler(provider, f.svc, f.webhookEvents, f.clock, nil, nil, log)
	return f
}

// scenarioItems totals 125.50.
func scenarioItems() []domain.InvoiceItem {
	return []domain.InvoiceItem{
		{Description: "Design", Quantity: dec("2"), UnitPrice: dec("50.00")},
		{Description: "Hosting", Quantity: dec("1"), UnitPrice: dec("25.50")},
	}
}

func (f *fixture) createDraft(t testing.TB, due time.Time) *domain.Invoice {
	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceParams{
		OwnerID:  f.owner.ID,
		ClientID: f.client.ID,
		DueDate:  due,
		Currency: "usd",
		Items:    scenarioItems(),
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}

// sentInvoice stores an invoice already in status with both artifacts bound.
func (f *fixture) sentInvoice(status domain.InvoiceStatus, due time.Time) domain.Invoice {
	pdfURL, linkURL, linkID := "https://files.test/x.pdf", "https://buy.stripe.test/plink_x", "plink_x"
	inv := domain.Invoice{
		ID:             uuid.New(),
		UserID:         f.owner.ID,
		ClientID:       f.client.ID,
		InvoiceNumber:  domain.FormatInvoiceNumber(fixtureStart, int64(len(f.invoices.rows)+1)),
		IssueDate:      domain.DateOnly(fixtureStart),
		DueDate:        domain.DateOnly(due),
		Status:         status,
		TotalAmount:    dec("125.50"),
		Currency:       "USD",
		Items:          scenarioItems(),
		PDFURL:         &pdfURL,
		PaymentLinkURL: &linkURL,
		PaymentLinkID:  &linkID,
		CreatedAt:      fixtureStart,
		UpdatedAt:      fixtureStart,
	}
	f.invoices.put(inv)
	return inv
}
