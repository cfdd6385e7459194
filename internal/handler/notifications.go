package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentbridge/messaging/internal/middleware"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/pkg/logger"
)

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	messenger *service.Messenger
	logger    *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(m *service.Messenger, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		messenger: m,
		logger:    log,
	}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	list, unread, err := h.messenger.ListNotifications(ctx, userID)
	if err != nil {
		writeServiceError(w, h.logger, "list notifications", err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}

	writeJSON(w, http.StatusOK, &model.ListNotificationsResponse{
		Notifications: list,
		UnreadCount:   unread,
	})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	id := chi.URLParam(r, "id")

	if err := middleware.ValidateNotificationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed, err := h.messenger.MarkNotificationRead(ctx, userID, id)
	if err != nil {
		writeServiceError(w, h.logger, "mark notification read", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	n, err := h.messenger.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		writeServiceError(w, h.logger, "mark all notifications read", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"marked": n})
}

// Create handles POST /api/v1/internal/notifications
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "unknown notification type")
		return
	}
	if err := middleware.ValidateNotificationMessage(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.messenger.CreateNotification(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, "create notification", err)
		return
	}

	writeJSON(w, http.StatusCreated, n)
}
