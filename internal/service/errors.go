package service

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the sender may not message the receiver.
	ErrPermissionDenied = errors.New("you cannot message this user")

	// ErrSessionClosed is returned by operations on a closed surface.
	ErrSessionClosed = errors.New("session closed")

	// ErrEmptyContent is returned when a message has no text.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrContentTooLong is returned when a message exceeds MaxContentRunes.
	ErrContentTooLong = errors.New("content exceeds maximum length")

	// ErrInvalidParticipants is returned for empty or identical participant ids.
	ErrInvalidParticipants = errors.New("invalid participants")
)

// StoreError wraps a failed store call. It is transient; retrying the same
// operation is safe.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// SubscriptionError reports that the push channel could not be established.
// The surface keeps working by pulling.
type SubscriptionError struct {
	Table string
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe to %s failed: %v", e.Table, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
