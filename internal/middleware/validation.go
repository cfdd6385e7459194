package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxNotificationMessageLength bounds notification text in bytes.
const MaxNotificationMessageLength = 1000

// ValidateUserID validates a user ID.
func ValidateUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid user ID format")
	}
	return nil
}

// ValidateNotificationID validates a notification ID.
func ValidateNotificationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid notification ID format")
	}
	return nil
}

// ValidateApplicationID validates an optional application ID.
func ValidateApplicationID(id *string) error {
	if id == nil {
		return nil
	}
	if _, err := uuid.Parse(*id); err != nil {
		return errors.New("invalid application ID format")
	}
	return nil
}

// ValidateNotificationMessage validates notification text.
func ValidateNotificationMessage(msg string) error {
	if len(msg) == 0 {
		return errors.New("message cannot be empty")
	}
	if len(msg) > MaxNotificationMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(msg) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}
