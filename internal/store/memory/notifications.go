package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talentbridge/messaging/internal/feed"
	"github.com/talentbridge/messaging/internal/model"
	"github.com/talentbridge/messaging/internal/store"
)

// NotificationStore keeps notifications in memory.
type NotificationStore struct {
	mu            sync.RWMutex
	notifications []model.Notification
	publisher     feed.Publisher
	now           func() time.Time
}

// NewNotificationStore creates an empty notification store.
func NewNotificationStore(publisher feed.Publisher) *NotificationStore {
	if publisher == nil {
		publisher = feed.NoopPublisher{}
	}
	return &NotificationStore{publisher: publisher, now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *NotificationStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Create implements store.NotificationStore.
func (s *NotificationStore) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if n.UserID == "" || !n.Type.Valid() {
		return nil, fmt.Errorf("%w: notification needs user and known type", store.ErrInvalid)
	}

	s.mu.Lock()
	row := *n
	if row.ID == "" {
		row.ID = uuid.Must(uuid.NewV7()).String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	row.Read = false
	s.notifications = append(s.notifications, row)
	s.mu.Unlock()

	publish(ctx, s.publisher, store.TableNotifications, feed.OpInsert, row.ID, map[string]string{
		store.ColumnUserID: row.UserID,
	})
	return &row, nil
}

// ListForUser implements store.NotificationStore.
func (s *NotificationStore) ListForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.RLock()
	out := make([]model.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	// Newest first, ties by id descending, as the SQL store orders them.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// MarkRead implements store.NotificationStore.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id string) (int, error) {
	return s.mark(ctx, userID, func(n *model.Notification) bool { return n.ID == id })
}

// MarkAllRead implements store.NotificationStore.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.mark(ctx, userID, func(*model.Notification) bool { return true })
}

func (s *NotificationStore) mark(ctx context.Context, userID string, match func(*model.Notification) bool) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: notification update must be scoped to a user", store.ErrInvalid)
	}

	s.mu.Lock()
	count := 0
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.UserID == userID && !n.Read && match(n) {
			n.Read = true
			count++
		}
	}
	s.mu.Unlock()

	if count > 0 {
		publish(ctx, s.publisher, store.TableNotifications, feed.OpUpdate, "", map[string]string{
			store.ColumnUserID: userID,
		})
	}
	return count, nil
}
