package api

import (
	"net/http"
	"strconv"

	"github.com/dukerupert/ledgerly/internal/domain"
	"github.com/dukerupert/ledgerly/internal/handler"
)

// NotificationHandler serves the owner's notification feed.
type NotificationHandler struct {
	notifications domain.NotificationService
}

func NewNotificationHandler(notifications domain.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications?limit=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			handler.ErrorResponse(w, r, domain.NewValidationError("notification.list", "limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	list, err := h.notifications.List(r.Context(), ownerID, limit)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, list)
}

// MarkRead handles PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := withOwner(w, r, true)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), ownerID, id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ownerID, _, ok := withOwner(w, r, false)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(r.Context(), ownerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}
