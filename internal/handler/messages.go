package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/middleware"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/pkg/logger"
)

// MessageHandler handles message endpoints of one conversation.
type MessageHandler struct {
	messenger *service.Messenger
	logger    *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(m *service.Messenger, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messenger: m,
		logger:    log,
	}
}

// counterpart reads and validates the counterpart path parameter.
func counterpart(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "counterpartID")
	if err := middleware.ValidateUserID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if id == middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot open a conversation with yourself")
		return "", false
	}
	return id, true
}

// List handles GET /api/v1/conversations/{counterpartID}/messages
// Opening the conversation marks the counterpart's messages read.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	counterpartID, ok := counterpart(w, r)
	if !ok {
		return
	}

	if _, err := h.messenger.MarkConversationRead(ctx, userID, counterpartID); err != nil {
		h.logger.Warn("failed to mark conversation read",
			zap.String("user_id", userID),
			zap.String("counterpart_id", counterpartID),
			zap.Error(err),
		)
	}

	msgs, err := h.messenger.History(ctx, userID, counterpartID)
	if err != nil {
		writeServiceError(w, h.logger, "list messages", err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{
		CounterpartID: counterpartID,
		Messages:      msgs,
		State:         string(service.StateReady),
	})
}

// Send handles POST /api/v1/conversations/{counterpartID}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	counterpartID, ok := counterpart(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateApplicationID(req.ApplicationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messenger.Send(ctx, userID, counterpartID, req.Content, req.ApplicationID)
	if err != nil {
		writeServiceError(w, h.logger, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: msg})
}
