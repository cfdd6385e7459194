// Package service provides the conversation and notification surfaces.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/moderation"
	"github.com/talentbridge/messaging/internal/permission"
	"github.com/talentbridge/messaging/internal/policy"
	"github.com/talentbridge/messaging/internal/store"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/metrics"
	"github.com/talentbridge/messaging/pkg/tracing"
)

const tracerName = "github.com/talentbridge/messaging/internal/service"

// MaxContentRunes bounds the length of one message.
const MaxContentRunes = 5000

// Config tunes timeouts and reconciliation.
type Config struct {
	// StoreTimeout bounds every store call.
	StoreTimeout time.Duration
	// Debounce is the window in which change events collapse into one re-pull.
	Debounce time.Duration
	// ResubscribeMaxInterval caps the backoff between subscribe attempts.
	ResubscribeMaxInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:           10 * time.Second,
		Debounce:               50 * time.Millisecond,
		ResubscribeMaxInterval: 30 * time.Second,
	}
}

// Deps are the collaborators a Messenger is built from.
type Deps struct {
	Messages      store.MessageStore
	Notifications store.NotificationStore
	Profiles      store.ProfileStore
	Applications  store.ApplicationStore
	Feed          feed.Subscriber

	// Classifier is optional.
	Classifier moderation.Classifier
}

// Messenger opens conversation sessions, inboxes and notification
// aggregators, and performs one-shot sends and reads.
type Messenger struct {
	messages      store.MessageStore
	notifications store.NotificationStore
	profiles      store.ProfileStore
	feed          feed.Subscriber
	gate          *permission.Gate
	filter        *policy.Filter
	classifier    moderation.Classifier
	cfg           Config
	logger        *logger.Logger
}

// NewMessenger creates a new messenger.
func NewMessenger(deps Deps, cfg Config, log *logger.Logger) *Messenger {
	def := DefaultConfig()
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.ResubscribeMaxInterval <= 0 {
		cfg.ResubscribeMaxInterval = def.ResubscribeMaxInterval
	}

	return &Messenger{
		messages:      deps.Messages,
		notifications: deps.Notifications,
		profiles:      deps.Profiles,
		feed:          deps.Feed,
		gate:          permission.NewGate(deps.Profiles, deps.Applications),
		filter:        policy.NewFilter(),
		classifier:    deps.Classifier,
		cfg:           cfg,
		logger:        log,
	}
}

func (m *Messenger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.StoreTimeout)
}

// Send validates and persists one message. Content and permission checks
// run before the store is touched; on rejection nothing is written.
func (m *Messenger) Send(ctx context.Context, senderID, receiverID, content string, applicationID *string) (msg *model.Message, err error) {
	ctx, end := tracing.Start(ctx, tracerName, "Messenger.Send",
		attribute.String("sender_id", senderID),
		attribute.String("receiver_id", receiverID),
	)
	defer func() { end(err) }()

	if senderID == "" || receiverID == "" || senderID == receiverID {
		return nil, ErrInvalidParticipants
	}

	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, err
	}

	if err := m.checkPolicy(ctx, content); err != nil {
		var v *policy.Violation
		if errors.As(err, &v) {
			metrics.SendRejectionsTotal.WithLabelValues(string(v.Reason)).Inc()
		}
		return nil, err
	}

	permCtx, cancel := m.withTimeout(ctx)
	allowed, err := m.gate.CanMessage(permCtx, senderID, receiverID, applicationID)
	cancel()
	if err != nil {
		metrics.SendRejectionsTotal.WithLabelValues("store").Inc()
		return nil, &StoreError{Op: "permission", Err: err}
	}
	if !allowed {
		metrics.SendRejectionsTotal.WithLabelValues("permission").Inc()
		return nil, ErrPermissionDenied
	}

	appendCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	stored, err := m.messages.Append(appendCtx, &model.Message{
		SenderID:      senderID,
		ReceiverID:    receiverID,
		Content:       content,
		ApplicationID: applicationID,
	})
	if err != nil {
		metrics.SendRejectionsTotal.WithLabelValues("store").Inc()
		return nil, &StoreError{Op: "append", Err: err}
	}

	metrics.MessagesSentTotal.Inc()
	m.logger.Debug("message sent",
		zap.String("message_id", stored.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
	)

	return stored, nil
}

func validateContent(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if !utf8.ValidString(content) || utf8.RuneCountInString(content) > MaxContentRunes {
		return ErrContentTooLong
	}
	return nil
}

// checkPolicy runs the pattern filter, then the classifier when configured.
// A classifier failure lets the message through.
func (m *Messenger) checkPolicy(ctx context.Context, content string) error {
	if err := m.filter.Validate(content); err != nil {
		return err
	}
	if m.classifier == nil {
		return nil
	}

	verdict, err := m.classifier.Classify(ctx, content)
	if err != nil {
		m.logger.Warn("moderation classifier failed", zap.Error(err))
		return nil
	}
	if verdict.ContainsContact {
		return &policy.Violation{Reason: policy.ReasonContactInfo}
	}
	return nil
}

// History returns the messages between self and counterpart, oldest first.
func (m *Messenger) History(ctx context.Context, selfID, counterpartID string) ([]model.Message, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	msgs, err := m.messages.RangeByParticipants(ctx, selfID, counterpartID)
	if err != nil {
		return nil, &StoreError{Op: "range", Err: err}
	}
	return msgs, nil
}

// ListConversations pulls and aggregates every conversation of selfID.
func (m *Messenger) ListConversations(ctx context.Context, selfID string) ([]model.Conversation, error) {
	pullCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	msgs, err := m.messages.ListByParticipant(pullCtx, selfID)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	convs := Aggregate(selfID, msgs)
	m.attachProfiles(pullCtx, convs)
	return convs, nil
}

// UnreadMessageCount returns the number of unread messages addressed to selfID.
func (m *Messenger) UnreadMessageCount(ctx context.Context, selfID string) (int, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	msgs, err := m.messages.ListByParticipant(ctx, selfID)
	if err != nil {
		return 0, &StoreError{Op: "list", Err: err}
	}
	return UnreadTotal(Aggregate(selfID, msgs)), nil
}

// MarkConversationRead marks every message from counterpart to self as read.
func (m *Messenger) MarkConversationRead(ctx context.Context, selfID, counterpartID string) (int, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.messages.MarkRead(ctx, store.ReadFilter{ReceiverID: selfID, SenderID: counterpartID})
	if err != nil {
		return 0, &StoreError{Op: "mark_read", Err: err}
	}
	return n, nil
}

// CreateNotification stores a notification produced by a server-side trigger.
func (m *Messenger) CreateNotification(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.notifications.Create(ctx, &model.Notification{
		UserID:        req.UserID,
		Type:          req.Type,
		JobID:         req.JobID,
		ApplicationID: req.ApplicationID,
		Message:       req.Message,
	})
	if errors.Is(err, store.ErrInvalid) {
		return nil, err
	}
	if err != nil {
		return nil, &StoreError{Op: "create_notification", Err: err}
	}
	return n, nil
}

// ListNotifications returns the notifications of selfID, latest first, and
// the number still unread.
func (m *Messenger) ListNotifications(ctx context.Context, selfID string) ([]model.Notification, int, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	list, err := m.notifications.ListForUser(ctx, selfID)
	if err != nil {
		return nil, 0, &StoreError{Op: "list_notifications", Err: err}
	}
	return list, countUnread(list), nil
}

// MarkNotificationRead marks one of selfID's notifications read. It reports
// whether a row changed.
func (m *Messenger) MarkNotificationRead(ctx context.Context, selfID, id string) (bool, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.notifications.MarkRead(ctx, selfID, id)
	if err != nil {
		return false, &StoreError{Op: "mark_read", Err: err}
	}
	metrics.NotificationsMarkedReadTotal.Add(float64(n))
	return n > 0, nil
}

// MarkAllNotificationsRead marks every notification of selfID read.
func (m *Messenger) MarkAllNotificationsRead(ctx context.Context, selfID string) (int, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.notifications.MarkAllRead(ctx, selfID)
	if err != nil {
		return 0, &StoreError{Op: "mark_all_read", Err: err}
	}
	metrics.NotificationsMarkedReadTotal.Add(float64(n))
	return n, nil
}

// attachProfiles fills Counterpart where the profile exists. Lookup failures
// leave conversations without profiles.
func (m *Messenger) attachProfiles(ctx context.Context, convs []model.Conversation) {
	if len(convs) == 0 || m.profiles == nil {
		return
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.CounterpartID
	}

	profiles, err := m.profiles.GetProfiles(ctx, ids)
	if err != nil {
		m.logger.Warn("failed to load counterpart profiles", zap.Error(err))
		return
	}
	for i := range convs {
		if p, ok := profiles[convs[i].CounterpartID]; ok {
			p := p
			convs[i].Counterpart = &p
		}
	}
}
