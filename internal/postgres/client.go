package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// ClientStore implements domain.ClientStore.
type ClientStore struct {
	db DBTX
}

var _ domain.ClientStore = (*ClientStore)(nil)

func NewClientStore(db DBTX) *ClientStore {
	return &ClientStore{db: db}
}

const clientColumns = `id, user_id, name, email, phone, address, company, tax_id, notes, created_at, updated_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.Company, &c.TaxID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientStore) CreateClient(ctx context.Context, c *domain.Client) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO clients (id, user_id, name, email, phone, address, company, tax_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.Company, c.TaxID, c.Notes,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func (s *ClientStore) GetClient(ctx context.Context, ownerID, id uuid.UUID) (*domain.Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 AND user_id = $2`, id, ownerID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

func (s *ClientStore) ListClients(ctx context.Context, ownerID uuid.UUID) ([]domain.Client, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE user_id = $1 ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *ClientStore) UpdateClient(ctx context.Context, c *domain.Client) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE clients
		SET name = $3, email = $4, phone = $5, address = $6, company = $7, tax_id = $8,
			notes = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.Company, c.TaxID, c.Notes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

func (s *ClientStore) DeleteClient(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}
