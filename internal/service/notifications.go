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

// NotificationSnapshot is a point-in-time view of a NotificationAggregator.
type NotificationSnapshot struct {
	Notifications []model.Notification
	UnreadCount   int
	State         State
	Err           error
	PullOnly      bool
}

// NotificationAggregator is the live notification list of one user, latest
// first. UnreadCount is materialized locally and reset on every pull.
type NotificationAggregator struct {
	m      *Messenger
	selfID string
	logger *logger.Logger
	live   *liveFeed

	pullMu sync.Mutex

	mu            sync.RWMutex
	notifications []model.Notification
	unread        int
	state         State
	err           error
	closed        bool
	updates       *latest[NotificationSnapshot]
}

// OpenNotifications opens the live notification list for selfID.
func (m *Messenger) OpenNotifications(ctx context.Context, selfID string) (*NotificationAggregator, error) {
	if selfID == "" {
		return nil, ErrInvalidParticipants
	}

	a := &NotificationAggregator{
		m:       m,
		selfID:  selfID,
		logger:  m.logger.ForSession("notifications", selfID),
		state:   StateLoading,
		updates: newLatest[NotificationSnapshot](),
	}
	a.live = newLiveFeed("notifications", m.feed, store.TableNotifications, []feed.Filter{
		{Column: store.ColumnUserID, Value: selfID},
	}, m.cfg, a.logger, a.reconcile)

	if err := a.live.start(); err != nil {
		a.logger.Warn("notifications are pull-only", zap.Error(err))
	}
	if err := a.pull(ctx); err != nil {
		a.logger.Warn("initial pull failed", zap.Error(err))
	}

	return a, nil
}

func (a *NotificationAggregator) reconcile() {
	ctx, cancel := context.WithTimeout(a.live.ctx, a.m.cfg.StoreTimeout)
	defer cancel()

	err := a.pull(ctx)
	metrics.RecordReconcile("notifications", err)
	if err != nil && !errors.Is(err, ErrSessionClosed) {
		a.logger.Warn("reconcile failed", zap.Error(err))
	}
}

func (a *NotificationAggregator) pull(ctx context.Context) error {
	a.pullMu.Lock()
	defer a.pullMu.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrSessionClosed
	}
	if a.state != StateLoading {
		a.state = StateReconciling
	}
	a.mu.Unlock()

	ctx, cancel := a.m.withTimeout(ctx)
	defer cancel()
	list, err := a.m.notifications.ListForUser(ctx, a.selfID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrSessionClosed
	}
	if err != nil {
		err = &StoreError{Op: "list_notifications", Err: err}
		a.state, a.err = StateError, err
	} else {
		a.notifications = list
		a.unread = countUnread(list)
		a.state, a.err = StateReady, nil
	}
	a.notifyLocked()
	return err
}

func countUnread(list []model.Notification) int {
	n := 0
	for _, x := range list {
		if !x.Read {
			n++
		}
	}
	return n
}

// MarkAsRead marks one notification read. The counter drops by one only if
// the notification was unread locally, and never below zero.
func (a *NotificationAggregator) MarkAsRead(ctx context.Context, id string) error {
	if a.isClosed() {
		return ErrSessionClosed
	}

	ctx, cancel := a.m.withTimeout(ctx)
	defer cancel()
	n, err := a.m.notifications.MarkRead(ctx, a.selfID, id)
	if err != nil {
		return a.storeFailed("mark_read", err)
	}
	metrics.NotificationsMarkedReadTotal.Add(float64(n))

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	for i := range a.notifications {
		if a.notifications[i].ID == id && !a.notifications[i].Read {
			a.notifications[i].Read = true
			if a.unread > 0 {
				a.unread--
			}
			break
		}
	}
	a.state, a.err = StateReady, nil
	a.notifyLocked()
	return nil
}

// MarkAllAsRead marks every notification read and zeroes the counter.
// Calling it again changes nothing.
func (a *NotificationAggregator) MarkAllAsRead(ctx context.Context) error {
	if a.isClosed() {
		return ErrSessionClosed
	}

	ctx, cancel := a.m.withTimeout(ctx)
	defer cancel()
	n, err := a.m.notifications.MarkAllRead(ctx, a.selfID)
	if err != nil {
		return a.storeFailed("mark_all_read", err)
	}
	metrics.NotificationsMarkedReadTotal.Add(float64(n))

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	for i := range a.notifications {
		a.notifications[i].Read = true
	}
	a.unread = 0
	a.state, a.err = StateReady, nil
	a.notifyLocked()
	return nil
}

func (a *NotificationAggregator) storeFailed(op string, err error) error {
	serr := &StoreError{Op: op, Err: err}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.state, a.err = StateError, serr
		a.notifyLocked()
	}
	return serr
}

// Refresh pulls the notifications now.
func (a *NotificationAggregator) Refresh(ctx context.Context) error {
	return a.pull(ctx)
}

// Notifications returns the notifications, latest first.
func (a *NotificationAggregator) Notifications() []model.Notification {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]model.Notification(nil), a.notifications...)
}

// UnreadCount returns the number of unread notifications.
func (a *NotificationAggregator) UnreadCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.unread
}

// State returns the current lifecycle state.
func (a *NotificationAggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Snapshot returns the current view.
func (a *NotificationAggregator) Snapshot() NotificationSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

// Updates delivers the latest snapshot after every change. Closed by Close.
func (a *NotificationAggregator) Updates() <-chan NotificationSnapshot {
	return a.updates.ch
}

// Close releases the subscription. Safe to call more than once.
func (a *NotificationAggregator) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.updates.close()
	a.mu.Unlock()

	a.live.stop()
	return nil
}

func (a *NotificationAggregator) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *NotificationAggregator) snapshotLocked() NotificationSnapshot {
	return NotificationSnapshot{
		Notifications: append([]model.Notification(nil), a.notifications...),
		UnreadCount:   a.unread,
		State:         a.state,
		Err:           a.err,
		PullOnly:      a.live.isPullOnly(),
	}
}

func (a *NotificationAggregator) notifyLocked() {
	a.updates.publish(a.snapshotLocked())
}
