package postgres

import (
	"context"
	"fmt"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// EmailLogStore implements domain.EmailLogStore.
type EmailLogStore struct {
	db DBTX
}

var _ domain.EmailLogStore = (*EmailLogStore)(nil)

func NewEmailLogStore(db DBTX) *EmailLogStore {
	return &EmailLogStore{db: db}
}

func (s *EmailLogStore) CreateEmailLog(ctx context.Context, l *domain.EmailLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO email_logs (id, user_id, recipient, subject, body_preview, status, related_invoice_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.UserID, l.Recipient, l.Subject, l.BodyPreview, string(l.Status), l.RelatedInvoiceID, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert email log: %w", err)
	}
	return nil
}
