package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// InvoiceStore implements domain.InvoiceStore.
type InvoiceStore struct {
	db DBTX
}

var _ domain.InvoiceStore = (*InvoiceStore)(nil)

func NewInvoiceStore(db DBTX) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, user_id, client_id, project_id, invoice_number, issue_date, due_date,
	status, total_amount::text, currency, items, notes, pdf_url, payment_link_url,
	payment_link_id, payment_reference, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv    domain.Invoice
		status string
		total  string
		items  []byte
	)
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.ClientID, &inv.ProjectID, &inv.InvoiceNumber,
		&inv.IssueDate, &inv.DueDate, &status, &total, &inv.Currency, &items, &inv.Notes,
		&inv.PDFURL, &inv.PaymentLinkURL, &inv.PaymentLinkID, &inv.PaymentReference,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = domain.InvoiceStatus(status)
	if inv.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("failed to parse invoice total %q: %w", total, err)
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("failed to decode invoice items: %w", err)
	}
	inv.IssueDate = domain.DateOnly(inv.IssueDate)
	inv.DueDate = domain.DateOnly(inv.DueDate)
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]domain.Invoice, error) {
	defer rows.Close()
	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func encodeItems(items []domain.InvoiceItem) ([]byte, error) {
	if items == nil {
		items = []domain.InvoiceItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice items: %w", err)
	}
	return b, nil
}

func (s *InvoiceStore) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	items, err := encodeItems(inv.Items)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO invoices (id, user_id, client_id, project_id, invoice_number, issue_date,
			due_date, status, total_amount, currency, items, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $13)`,
		inv.ID, inv.UserID, inv.ClientID, inv.ProjectID, inv.InvoiceNumber, inv.IssueDate,
		inv.DueDate, string(inv.Status), inv.TotalAmount.String(), inv.Currency, items, inv.Notes,
		inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvoiceNumberGeneration
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

// NextInvoiceSequence atomically increments the owner's counter for day.
func (s *InvoiceStore) NextInvoiceSequence(ctx context.Context, userID uuid.UUID, day time.Time) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO invoice_number_sequences (user_id, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE
			SET last_value = invoice_number_sequences.last_value + 1
		RETURNING last_value`,
		userID, domain.DateOnly(day),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate invoice sequence: %w", err)
	}
	return seq, nil
}

func (s *InvoiceStore) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (s *InvoiceStore) GetInvoiceForOwner(ctx context.Context, ownerID, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2`, id, ownerID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (s *InvoiceStore) ListInvoices(ctx context.Context, ownerID uuid.UUID, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var status *string
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC`,
		ownerID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return collectInvoices(rows)
}

func (s *InvoiceStore) ListPaidInvoices(ctx context.Context, ownerID uuid.UUID) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = $1 AND status = 'paid'
		ORDER BY updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid invoices: %w", err)
	}
	return collectInvoices(rows)
}

func (s *InvoiceStore) UpdateInvoiceContent(ctx context.Context, inv *domain.Invoice, allowed []domain.InvoiceStatus) error {
	items, err := encodeItems(inv.Items)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE invoices
		SET client_id = $3, project_id = $4, issue_date = $5, due_date = $6, currency = $7,
			notes = $8, items = $9, total_amount = $10::numeric, updated_at = $11
		WHERE id = $1 AND user_id = $2 AND status = ANY($12)`,
		inv.ID, inv.UserID, inv.ClientID, inv.ProjectID, inv.IssueDate, inv.DueDate,
		inv.Currency, inv.Notes, items, inv.TotalAmount.String(), inv.UpdatedAt,
		statusStrings(allowed),
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetInvoiceForOwner(ctx, inv.UserID, inv.ID); err != nil {
			return err
		}
		return domain.ErrInvoiceNotEditable
	}
	return nil
}

// TransitionInvoice moves the invoice to params.To only if it is still in
// one of params.From. A lost race returns domain.ErrStatusConflict.
func (s *InvoiceStore) TransitionInvoice(ctx context.Context, params domain.TransitionParams) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx, `
		UPDATE invoices
		SET status = $2, updated_at = $3, payment_reference = COALESCE($4, payment_reference)
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+invoiceColumns,
		params.InvoiceID, string(params.To), params.At, nullString(params.PaymentReference),
		statusStrings(params.From),
	))
	if err == nil {
		return inv, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to transition invoice: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, params.InvoiceID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check invoice: %w", err)
	}
	if !exists {
		return nil, domain.ErrInvoiceNotFound
	}
	return nil, domain.ErrStatusConflict
}

func (s *InvoiceStore) SetInvoicePDF(ctx context.Context, id uuid.UUID, url string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE invoices SET pdf_url = $2, updated_at = $3 WHERE id = $1`, id, url, at)
	if err != nil {
		return fmt.Errorf("failed to record invoice pdf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

func (s *InvoiceStore) BindPaymentLink(ctx context.Context, id uuid.UUID, url, linkID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices SET payment_link_url = $2, payment_link_id = $3, updated_at = $4
		WHERE id = $1 AND payment_link_id IS NULL`,
		id, url, linkID, at,
	)
	if err != nil {
		return false, fmt.Errorf("failed to bind payment link: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *InvoiceStore) DeleteInvoice(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

func (s *InvoiceStore) ListOverdueCandidates(ctx context.Context, today time.Time) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status IN ('sent', 'viewed') AND due_date < $1
		ORDER BY due_date, id`,
		domain.DateOnly(today),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	return collectInvoices(rows)
}

func (s *InvoiceStore) Summary(ctx context.Context, ownerID uuid.UUID, since time.Time) (*domain.InvoiceSummary, error) {
	sum := &domain.InvoiceSummary{
		StatusCounts: make(map[domain.InvoiceStatus]int64),
		Since:        domain.DateOnly(since),
	}

	rows, err := s.db.Query(ctx, `
		SELECT status, COUNT(*) FROM invoices
		WHERE user_id = $1
		GROUP BY status`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan invoice count: %w", err)
		}
		sum.StatusCounts[domain.InvoiceStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE user_id = $1`, ownerID).Scan(&sum.ClientCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}

	rows, err = s.db.Query(ctx, `
		SELECT (updated_at AT TIME ZONE 'UTC')::date AS day, SUM(total_amount)::text
		FROM invoices
		WHERE user_id = $1 AND status = 'paid' AND updated_at >= $2
		GROUP BY day
		ORDER BY day`,
		ownerID, sum.Since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			day    time.Time
			amount string
		)
		if err := rows.Scan(&day, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan revenue: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid revenue amount %q: %w", amount, err)
		}
		sum.Revenue = append(sum.Revenue, domain.DailyRevenue{Day: day, Amount: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return sum, nil
}
