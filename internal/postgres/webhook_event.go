package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// WebhookEventStore implements domain.WebhookEventStore, the replay guard
// for provider deliveries.
type WebhookEventStore struct {
	db DBTX
}

var _ domain.WebhookEventStore = (*WebhookEventStore)(nil)

func NewWebhookEventStore(db DBTX) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

func (s *WebhookEventStore) WebhookEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

// RecordWebhookEvent is a no-op for an event id already recorded.
func (s *WebhookEventStore) RecordWebhookEvent(ctx context.Context, eventID, eventType string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO webhook_events (event_id, event_type, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}
