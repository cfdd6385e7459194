// Package store defines the authoritative persistence interfaces.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/talentbridge/messaging/internal/model"
)

// Common store errors.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned when a write violates a constraint.
	ErrInvalid = errors.New("invalid row")
)

// Table names used for change events.
const (
	TableMessages      = "messages"
	TableNotifications = "notifications"
)

// Column names used as change event filters.
const (
	ColumnReceiverID = "receiver_id"
	ColumnSenderID   = "sender_id"
	ColumnUserID     = "user_id"
)

// ReadFilter selects messages to mark as read. ReceiverID is mandatory so a
// user can only mark their own inbox.
type ReadFilter struct {
	ReceiverID string
	SenderID   string
	IDs        []string
}

// Validate rejects filters that are not scoped to a receiver.
func (f ReadFilter) Validate() error {
	if f.ReceiverID == "" {
		return fmt.Errorf("%w: read filter must be scoped to a receiver", ErrInvalid)
	}
	return nil
}

// Matches reports whether m is selected by the filter.
func (f ReadFilter) Matches(m *model.Message) bool {
	if m.ReceiverID != f.ReceiverID {
		return false
	}
	if f.SenderID != "" && m.SenderID != f.SenderID {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == m.ID {
				return true
			}
		}
		return false
	}
	return true
}

// MessageStore is the authoritative message table.
type MessageStore interface {
	// Append persists one message and returns the stored row.
	Append(ctx context.Context, msg *model.Message) (*model.Message, error)

	// RangeByParticipants returns every message exchanged between a and b,
	// ordered by created_at ascending.
	RangeByParticipants(ctx context.Context, a, b string) ([]model.Message, error)

	// ListByParticipant returns every message sent or received by userID,
	// ordered by created_at ascending.
	ListByParticipant(ctx context.Context, userID string) ([]model.Message, error)

	// MarkRead flips read to true on unread messages matching the filter and
	// returns how many rows changed.
	MarkRead(ctx context.Context, filter ReadFilter) (int, error)
}

// NotificationStore is the authoritative notification table.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)

	// ListForUser returns the user's notifications, latest first.
	ListForUser(ctx context.Context, userID string) ([]model.Notification, error)

	MarkRead(ctx context.Context, userID, id string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

// ProfileStore reads user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error)
}

// ApplicationStore reads job applications.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id string) (*model.Application, error)
}

// KeepValidMessages drops malformed rows in place and returns the kept rows
// and the number dropped.
func KeepValidMessages(msgs []model.Message) ([]model.Message, int) {
	kept := msgs[:0]
	for i := range msgs {
		if msgs[i].Validate() != nil {
			continue
		}
		kept = append(kept, msgs[i])
	}
	return kept, len(msgs) - len(kept)
}

// KeepValidNotifications drops malformed rows in place and returns the kept
// rows and the number dropped.
func KeepValidNotifications(ns []model.Notification) ([]model.Notification, int) {
	kept := ns[:0]
	for i := range ns {
		if ns[i].Validate() != nil {
			continue
		}
		kept = append(kept, ns[i])
	}
	return kept, len(ns) - len(kept)
}
