// Package model defines data structures for the messaging service.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is returned when a row read from a store is missing required fields.
var ErrMalformed = errors.New("malformed row")

// Message is a direct message between two users. Only Read is mutable.
type Message struct {
	ID            string    `json:"id" db:"id"`
	SenderID      string    `json:"sender_id" db:"sender_id"`
	ReceiverID    string    `json:"receiver_id" db:"receiver_id"`
	Content       string    `json:"content" db:"content"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	Read          bool      `json:"read" db:"read"`
	ApplicationID *string   `json:"application_id,omitempty" db:"application_id"`
}

// Validate rejects rows that cannot take part in aggregation.
func (m *Message) Validate() error {
	switch {
	case m.ID == "":
		return fmt.Errorf("%w: message has no id", ErrMalformed)
	case m.SenderID == "":
		return fmt.Errorf("%w: message %s has no sender", ErrMalformed, m.ID)
	case m.ReceiverID == "":
		return fmt.Errorf("%w: message %s has no receiver", ErrMalformed, m.ID)
	case m.CreatedAt.IsZero():
		return fmt.Errorf("%w: message %s has no timestamp", ErrMalformed, m.ID)
	}
	return nil
}

// Counterpart returns the participant that is not self.
func (m *Message) Counterpart(self string) string {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

// Between reports whether the message was exchanged by a and b, in either direction.
func (m *Message) Between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// SendMessageRequest is the request to send a direct message.
type SendMessageRequest struct {
	Content       string  `json:"content"`
	ApplicationID *string `json:"application_id,omitempty"`
}

// SendMessageResponse is the response after sending a message.
type SendMessageResponse struct {
	Message *Message `json:"message"`
}

// ListMessagesResponse is the response for listing a conversation's messages.
type ListMessagesResponse struct {
	CounterpartID string    `json:"counterpart_id"`
	Messages      []Message `json:"messages"`
	State         string    `json:"state"`
	PullOnly      bool      `json:"pull_only,omitempty"`
}

// ErrorEvent represents an error pushed over a stream.
type ErrorEvent struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HeartbeatEvent represents a heartbeat event.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}
