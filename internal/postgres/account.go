package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// AccountStore implements domain.AccountStore.
type AccountStore struct {
	db DBTX
}

var _ domain.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db DBTX) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, email, password_hash, first_name, last_name, is_admin, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &a.IsAdmin, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount stores a as admin when the table is empty.
func (s *AccountStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, first_name, last_name, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, NOT EXISTS (SELECT 1 FROM accounts), $6)
		RETURNING is_admin`,
		a.ID, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.CreatedAt,
	).Scan(&a.IsAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *AccountStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return a, nil
}
