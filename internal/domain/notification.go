package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = &Error{Code: ENOTFOUND, Message: "Notification not found"}

// NotificationType classifies a user-facing alert.
type NotificationType string

const (
	NotificationOverdueReminder NotificationType = "overdue_reminder"
	NotificationInvoicePaid     NotificationType = "invoice_paid"
	NotificationInvoiceSent     NotificationType = "invoice_sent"
)

// DefaultNotificationLimit bounds List when no limit is given.
const DefaultNotificationLimit = 50

// Notification is append-only; only IsRead ever changes.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	RelatedID *uuid.UUID       `json:"related_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationList is a page of notifications with the owner's unread count.
type NotificationList struct {
	Items       []Notification `json:"notifications"`
	UnreadCount int            `json:"unread_count"`
}

// EmitParams describes one notification to append.
type EmitParams struct {
	UserID    uuid.UUID
	Type      NotificationType
	Message   string
	RelatedID *uuid.UUID
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error

	// ListNotifications orders unread first, then newest first.
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error)
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkNotificationRead returns ErrNotificationNotFound when the id does
	// not belong to userID. Already-read rows are left untouched.
	MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// NotificationService appends and reads user-facing alerts.
type NotificationService interface {
	// Emit appends one notification. Never deduplicates.
	Emit(ctx context.Context, params EmitParams) (*Notification, error)

	// List returns the owner's most recent notifications, unread first.
	List(ctx context.Context, ownerID uuid.UUID, limit int) (*NotificationList, error)

	// MarkRead marks one owner notification read.
	MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error

	// MarkAllRead marks every owner notification read and returns how many changed.
	MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error)
}
