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

// InboxSnapshot is a point-in-time view of an Inbox.
type InboxSnapshot struct {
	Conversations []model.Conversation
	UnreadTotal   int
	State         State
	Err           error
	PullOnly      bool
}

// Inbox is the live conversation list of one user.
type Inbox struct {
	m      *Messenger
	selfID string
	logger *logger.Logger
	live   *liveFeed

	pullMu sync.Mutex

	mu            sync.RWMutex
	conversations []model.Conversation
	state         State
	err           error
	closed        bool
	updates       *latest[InboxSnapshot]
}

// OpenInbox opens the live conversation list for selfID. It follows both
// directions so sent and received messages reorder the list.
func (m *Messenger) OpenInbox(ctx context.Context, selfID string) (*Inbox, error) {
	if selfID == "" {
		return nil, ErrInvalidParticipants
	}

	in := &Inbox{
		m:       m,
		selfID:  selfID,
		logger:  m.logger.ForSession("inbox", selfID),
		state:   StateLoading,
		updates: newLatest[InboxSnapshot](),
	}
	in.live = newLiveFeed("inbox", m.feed, store.TableMessages, []feed.Filter{
		{Column: store.ColumnReceiverID, Value: selfID},
		{Column: store.ColumnSenderID, Value: selfID},
	}, m.cfg, in.logger, in.reconcile)

	if err := in.live.start(); err != nil {
		in.logger.Warn("inbox is pull-only", zap.Error(err))
	}
	if err := in.pull(ctx); err != nil {
		in.logger.Warn("initial pull failed", zap.Error(err))
	}

	return in, nil
}

func (in *Inbox) reconcile() {
	ctx, cancel := context.WithTimeout(in.live.ctx, in.m.cfg.StoreTimeout)
	defer cancel()

	err := in.pull(ctx)
	metrics.RecordReconcile("inbox", err)
	if err != nil && !errors.Is(err, ErrSessionClosed) {
		in.logger.Warn("reconcile failed", zap.Error(err))
	}
}

func (in *Inbox) pull(ctx context.Context) error {
	in.pullMu.Lock()
	defer in.pullMu.Unlock()

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return ErrSessionClosed
	}
	if in.state != StateLoading {
		in.state = StateReconciling
	}
	in.mu.Unlock()

	convs, err := in.m.ListConversations(ctx, in.selfID)

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return ErrSessionClosed
	}
	if err != nil {
		in.state, in.err = StateError, err
	} else {
		in.conversations = convs
		in.state, in.err = StateReady, nil
	}
	in.updates.publish(in.snapshotLocked())
	return err
}

// Refresh pulls the conversation list now.
func (in *Inbox) Refresh(ctx context.Context) error {
	return in.pull(ctx)
}

// Conversations returns the conversations, most recent first.
func (in *Inbox) Conversations() []model.Conversation {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]model.Conversation(nil), in.conversations...)
}

// UnreadTotal returns the unread messages across all conversations.
func (in *Inbox) UnreadTotal() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return UnreadTotal(in.conversations)
}

// State returns the current lifecycle state.
func (in *Inbox) State() State {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.state
}

// Snapshot returns the current view.
func (in *Inbox) Snapshot() InboxSnapshot {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.snapshotLocked()
}

// Updates delivers the latest snapshot after every pull. Closed by Close.
func (in *Inbox) Updates() <-chan InboxSnapshot {
	return in.updates.ch
}

// Close releases the subscriptions. Safe to call more than once.
func (in *Inbox) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	in.updates.close()
	in.mu.Unlock()

	in.live.stop()
	return nil
}

func (in *Inbox) snapshotLocked() InboxSnapshot {
	return InboxSnapshot{
		Conversations: append([]model.Conversation(nil), in.conversations...),
		UnreadTotal:   UnreadTotal(in.conversations),
		State:         in.state,
		Err:           in.err,
		PullOnly:      in.live.isPullOnly(),
	}
}
