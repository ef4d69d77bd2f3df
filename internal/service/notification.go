package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/events"
	"github.com/dukerupert/ledgerly/internal/telemetry"
)

const maxNotificationLimit = 200

// NotificationService appends notifications and announces them on the
// event bus.
type NotificationService struct {
	store     domain.NotificationStore
	publisher events.Publisher
	clock     clock.Clock
	metrics   *telemetry.BusinessMetrics
	logger    zerolog.Logger
}

var _ domain.NotificationService = (*NotificationService)(nil)

func NewNotificationService(store domain.NotificationStore, publisher events.Publisher, clk clock.Clock, metrics *telemetry.BusinessMetrics, logger zerolog.Logger) *NotificationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &NotificationService{
		store:     store,
		publisher: publisher,
		clock:     clk,
		metrics:   metrics,
		logger:    logger.With().Str("component", "notifications").Logger(),
	}
}

func (s *NotificationService) Emit(ctx context.Context, params domain.EmitParams) (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    params.UserID,
		Message:   params.Message,
		Type:      params.Type,
		RelatedID: params.RelatedID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.metrics.NotificationEmitted(string(n.Type))

	if err := s.publisher.PublishNotification(ctx, n); err != nil {
		logFrom(ctx, s.logger).Warn().Err(err).
			Str("notification_id", n.ID.String()).
			Msg("failed to publish notification")
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, ownerID uuid.UUID, limit int) (*domain.NotificationList, error) {
	if limit <= 0 {
		limit = domain.DefaultNotificationLimit
	}
	limit = min(limit, maxNotificationLimit)

	items, err := s.store.ListNotifications(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.store.CountUnreadNotifications(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return &domain.NotificationList{Items: items, UnreadCount: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error {
	return withOp(s.store.MarkNotificationRead(ctx, ownerID, notificationID), "notification.mark_read")
}

func (s *NotificationService) MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}
