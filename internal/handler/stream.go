package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/middleware"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/metrics"
)

// DefaultHeartbeat is the interval between heartbeat events.
const DefaultHeartbeat = 30 * time.Second

// StreamHandler handles SSE streaming endpoints. Every open stream owns one
// live surface, released when the client disconnects.
type StreamHandler struct {
	messenger *service.Messenger
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(m *service.Messenger, log *logger.Logger, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{
		messenger: m,
		logger:    log,
		heartbeat: heartbeat,
	}
}

// Conversation handles GET /api/v1/conversations/{counterpartID}/stream
// Supports ?application_id= to message under an accepted application.
func (h *StreamHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	counterpartID, ok := counterpart(w, r)
	if !ok {
		return
	}

	var applicationID *string
	if v := r.URL.Query().Get("application_id"); v != "" {
		applicationID = &v
		if err := middleware.ValidateApplicationID(applicationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	sess, err := h.messenger.OpenConversation(ctx, userID, counterpartID, applicationID)
	if err != nil {
		sendErrorEvent(w, flusher, err)
		return
	}
	defer sess.Close()

	_ = sendSSEEvent(w, flusher, "connected", map[string]string{
		"counterpart_id": counterpartID,
	})

	pump(h, w, r, flusher, sess.Updates(), func(s service.SessionSnapshot) (any, error) {
		return &model.ListMessagesResponse{
			CounterpartID: s.CounterpartID,
			Messages:      nonNil(s.Messages),
			State:         string(s.State),
			PullOnly:      s.PullOnly,
		}, s.Err
	})
}

// Inbox handles GET /api/v1/conversations/stream
func (h *StreamHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	in, err := h.messenger.OpenInbox(ctx, userID)
	if err != nil {
		sendErrorEvent(w, flusher, err)
		return
	}
	defer in.Close()

	_ = sendSSEEvent(w, flusher, "connected", map[string]string{"surface": "inbox"})

	pump(h, w, r, flusher, in.Updates(), func(s service.InboxSnapshot) (any, error) {
		return &model.ListConversationsResponse{
			Conversations: nonNil(s.Conversations),
			UnreadTotal:   s.UnreadTotal,
		}, s.Err
	})
}

// Notifications handles GET /api/v1/notifications/stream
func (h *StreamHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	agg, err := h.messenger.OpenNotifications(ctx, userID)
	if err != nil {
		sendErrorEvent(w, flusher, err)
		return
	}
	defer agg.Close()

	_ = sendSSEEvent(w, flusher, "connected", map[string]string{"surface": "notifications"})

	pump(h, w, r, flusher, agg.Updates(), func(s service.NotificationSnapshot) (any, error) {
		return &model.ListNotificationsResponse{
			Notifications: nonNil(s.Notifications),
			UnreadCount:   s.UnreadCount,
		}, s.Err
	})
}

// pump writes every snapshot, starting with the one left by the initial
// pull, plus a heartbeat until the client disconnects or the surface closes. A snapshot carrying an error
// is followed by an error event.
func pump[T any](h *StreamHandler, w http.ResponseWriter, r *http.Request, flusher http.Flusher, updates <-chan T, render func(T) (any, error)) {
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	send := func(snap T) error {
		payload, snapErr := render(snap)
		if err := sendSSEEvent(w, flusher, "snapshot", payload); err != nil {
			return err
		}
		if snapErr != nil {
			sendErrorEvent(w, flusher, snapErr)
		}
		return nil
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected",
				zap.String("path", r.URL.Path),
				zap.String("user_id", middleware.GetUserID(r.Context())),
			)
			return

		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := send(snap); err != nil {
				h.logger.Warn("failed to write snapshot", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func sendErrorEvent(w http.ResponseWriter, flusher http.Flusher, err error) {
	_, body := errorResponse(err)
	_ = sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
		Code:      body.Error,
		Message:   body.Message,
		Retryable: body.Retryable,
	})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
