// Package memory provides in-process stores for development and tests.
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

// MessageStore keeps messages in memory and announces writes on a publisher.
type MessageStore struct {
	mu        sync.RWMutex
	messages  []model.Message
	publisher feed.Publisher
	now       func() time.Time
}

// NewMessageStore creates an empty message store. A nil publisher disables
// change events.
func NewMessageStore(publisher feed.Publisher) *MessageStore {
	if publisher == nil {
		publisher = feed.NoopPublisher{}
	}
	return &MessageStore{publisher: publisher, now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *MessageStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Append implements store.MessageStore.
func (s *MessageStore) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg.SenderID == "" || msg.ReceiverID == "" {
		return nil, fmt.Errorf("%w: message needs sender and receiver", store.ErrInvalid)
	}

	s.mu.Lock()
	row := *msg
	if row.ID == "" {
		row.ID = uuid.Must(uuid.NewV7()).String()
	}
	for i := range s.messages {
		if s.messages[i].ID == row.ID {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: duplicate message id %s", store.ErrInvalid, row.ID)
		}
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	row.Read = false
	s.messages = append(s.messages, row)
	s.mu.Unlock()

	publish(ctx, s.publisher, store.TableMessages, feed.OpInsert, row.ID, map[string]string{
		store.ColumnReceiverID: row.ReceiverID,
		store.ColumnSenderID:   row.SenderID,
	})

	return &row, nil
}

// RangeByParticipants implements store.MessageStore.
func (s *MessageStore) RangeByParticipants(ctx context.Context, a, b string) ([]model.Message, error) {
	return s.selectMessages(func(m *model.Message) bool { return m.Between(a, b) }), nil
}

// ListByParticipant implements store.MessageStore.
func (s *MessageStore) ListByParticipant(ctx context.Context, userID string) ([]model.Message, error) {
	return s.selectMessages(func(m *model.Message) bool {
		return m.SenderID == userID || m.ReceiverID == userID
	}), nil
}

func (s *MessageStore) selectMessages(match func(*model.Message) bool) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, 0)
	for i := range s.messages {
		if match(&s.messages[i]) {
			out = append(out, s.messages[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkRead implements store.MessageStore.
func (s *MessageStore) MarkRead(ctx context.Context, filter store.ReadFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	count := 0
	for i := range s.messages {
		m := &s.messages[i]
		if !m.Read && filter.Matches(m) {
			m.Read = true
			count++
		}
	}
	s.mu.Unlock()

	if count > 0 {
		publish(ctx, s.publisher, store.TableMessages, feed.OpUpdate, "", map[string]string{
			store.ColumnReceiverID: filter.ReceiverID,
		})
	}
	return count, nil
}

// publish is best effort; the write it announces has already succeeded.
func publish(ctx context.Context, p feed.Publisher, table string, op feed.Op, rowID string, keys map[string]string) {
	_ = p.Publish(ctx, table, op, rowID, keys)
}
