// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/talentbridge/messaging/internal/middleware"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/pkg/logger"
)

// ConversationHandler handles conversation list endpoints.
type ConversationHandler struct {
	messenger *service.Messenger
	logger    *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(m *service.Messenger, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		messenger: m,
		logger:    log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	convs, err := h.messenger.ListConversations(ctx, userID)
	if err != nil {
		writeServiceError(w, h.logger, "list conversations", err)
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: convs,
		UnreadTotal:   service.UnreadTotal(convs),
	})
}

// UnreadCount handles GET /api/v1/conversations/unread-count
func (h *ConversationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	n, err := h.messenger.UnreadMessageCount(ctx, userID)
	if err != nil {
		writeServiceError(w, h.logger, "unread count", err)
		return
	}

	writeJSON(w, http.StatusOK, &model.UnreadCountResponse{UnreadCount: n})
}
