package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/ledgerly/internal/domain"
)

// NotificationStore implements domain.NotificationStore.
type NotificationStore struct {
	db DBTX
}

var _ domain.NotificationStore = (*NotificationStore)(nil)

func NewNotificationStore(db DBTX) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, message, type, related_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)`,
		n.ID, n.UserID, n.Message, string(n.Type), n.RelatedID, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, message, type, related_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY is_read ASC, created_at DESC, id
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n    domain.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &kind, &n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = domain.NotificationType(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	// Matching already-read rows keeps a repeat call from looking like a miss.
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationStore) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}
