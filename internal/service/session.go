package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
	"github.com/talentbridge/messaging/pkg/logger"
	"github.com/talentbridge/messaging/pkg/metrics"
)

// SessionSnapshot is a point-in-time view of a Session.
type SessionSnapshot struct {
	CounterpartID string
	Messages      []model.Message
	State         State
	Err           error
	PullOnly      bool
}

// Session is one open conversation between self and a counterpart. It keeps
// the message list in sync with the store and marks incoming messages read
// while open.
type Session struct {
	m             *Messenger
	selfID        string
	counterpartID string
	applicationID *string
	logger        *logger.Logger
	live          *liveFeed

	// pullMu serializes pulls so an older result never overwrites a newer one.
	pullMu sync.Mutex

	mu       sync.RWMutex
	messages []model.Message
	// pending holds sent messages not yet seen in a pull.
	pending []model.Message
	state   State
	err     error
	closed  bool
	updates *latest[SessionSnapshot]
}

// OpenConversation opens a session and performs the initial pull. A failed
// pull leaves the session in StateError; call Refresh to retry. A failed
// subscribe leaves it pull-only while resubscribing in the background.
func (m *Messenger) OpenConversation(ctx context.Context, selfID, counterpartID string, applicationID *string) (*Session, error) {
	if selfID == "" || counterpartID == "" || selfID == counterpartID {
		return nil, ErrInvalidParticipants
	}

	s := &Session{
		m:             m,
		selfID:        selfID,
		counterpartID: counterpartID,
		applicationID: applicationID,
		logger:        m.logger.ForSession("session", selfID).With(zap.String("counterpart_id", counterpartID)),
		state:         StateLoading,
		updates:       newLatest[SessionSnapshot](),
	}
	// sender_id carries sends made by the same user from other clients.
	s.live = newLiveFeed("session", m.feed, store.TableMessages, []feed.Filter{
		{Column: store.ColumnReceiverID, Value: selfID},
		{Column: store.ColumnSenderID, Value: selfID},
	}, m.cfg, s.logger, s.reconcile)

	// Subscribe before the first pull so no change falls in between.
	if err := s.live.start(); err != nil {
		s.logger.Warn("session is pull-only", zap.Error(err))
	}

	if err := s.pull(ctx); err != nil {
		s.logger.Warn("initial pull failed", zap.Error(err))
	}

	return s, nil
}

func (s *Session) reconcile() {
	ctx, cancel := context.WithTimeout(s.live.ctx, s.m.cfg.StoreTimeout)
	defer cancel()

	err := s.pull(ctx)
	metrics.RecordReconcile("session", err)
	if err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("reconcile failed", zap.Error(err))
	}
}

// pull reloads the conversation and marks the counterpart's messages read.
func (s *Session) pull(ctx context.Context) error {
	s.pullMu.Lock()
	defer s.pullMu.Unlock()

	if !s.setState(StateReconciling) {
		return ErrSessionClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.m.cfg.StoreTimeout)
	defer cancel()

	msgs, err := s.m.messages.RangeByParticipants(ctx, s.selfID, s.counterpartID)
	if err != nil {
		err = &StoreError{Op: "range", Err: err}
		s.fail(err)
		return err
	}

	var markErr error
	if hasUnreadFrom(msgs, s.selfID, s.counterpartID) {
		if _, err := s.m.messages.MarkRead(ctx, store.ReadFilter{
			ReceiverID: s.selfID,
			SenderID:   s.counterpartID,
		}); err != nil {
			markErr = &StoreError{Op: "mark_read", Err: err}
		} else {
			for i := range msgs {
				if msgs[i].ReceiverID == s.selfID && msgs[i].SenderID == s.counterpartID {
					msgs[i].Read = true
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	seen := make(map[string]struct{}, len(msgs))
	for _, msg := range msgs {
		seen[msg.ID] = struct{}{}
	}
	stillPending := s.pending[:0]
	for _, p := range s.pending {
		if _, ok := seen[p.ID]; !ok {
			stillPending = append(stillPending, p)
		}
	}
	s.pending = stillPending
	s.messages = mergeMessages(msgs, s.pending)

	if markErr != nil {
		s.state, s.err = StateError, markErr
	} else {
		s.state, s.err = StateReady, nil
	}
	s.notifyLocked()
	return markErr
}

func hasUnreadFrom(msgs []model.Message, selfID, counterpartID string) bool {
	for _, m := range msgs {
		if m.ReceiverID == selfID && m.SenderID == counterpartID && !m.Read {
			return true
		}
	}
	return false
}

// Send sends content to the counterpart. On success the message is shown
// at once, before the change event arrives. A rejected or failed send leaves
// the message list untouched.
func (s *Session) Send(ctx context.Context, content string) (*model.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	prev := s.state
	if prev == StateError {
		prev = StateReady
	}
	s.state = StateSending
	s.notifyLocked()
	s.mu.Unlock()

	msg, err := s.m.Send(ctx, s.selfID, s.counterpartID, content, s.applicationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return msg, err
	}

	switch {
	case err == nil:
		s.pending = append(s.pending, *msg)
		s.messages = mergeMessages(s.messages, []model.Message{*msg})
		s.state, s.err = StateReady, nil
	case IsRetryable(err):
		s.state, s.err = StateError, err
	default:
		s.state = prev
	}
	s.notifyLocked()
	return msg, err
}

// Refresh pulls the conversation now.
func (s *Session) Refresh(ctx context.Context) error {
	return s.pull(ctx)
}

// Messages returns the conversation, oldest first.
func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages...)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that put the session in StateError, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// PullOnly reports whether the push channel is down.
func (s *Session) PullOnly() bool {
	return s.live.isPullOnly()
}

// Snapshot returns the current view.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Updates delivers the latest snapshot after every change. An unread
// snapshot is replaced by a newer one. Closed by Close.
func (s *Session) Updates() <-chan SessionSnapshot {
	return s.updates.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.updates.close()
	s.mu.Unlock()

	s.live.stop()
	s.logger.Debug("session closed")
	return nil
}

func (s *Session) setState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.state != StateLoading {
		s.state = st
	}
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state, s.err = StateError, err
	s.notifyLocked()
}

func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		CounterpartID: s.counterpartID,
		Messages:      append([]model.Message(nil), s.messages...),
		State:         s.state,
		Err:           s.err,
		PullOnly:      s.live.isPullOnly(),
	}
}

func (s *Session) notifyLocked() {
	s.updates.publish(s.snapshotLocked())
}
