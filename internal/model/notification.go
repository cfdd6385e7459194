package model

import (
	"fmt"
	"time"
)

// NotificationType enumerates the system events users are notified about.
type NotificationType string

const (
	NotificationJobCreated               NotificationType = "job_created"
	NotificationApplicationReceived      NotificationType = "application_received"
	NotificationApplicationStatusChanged NotificationType = "application_status_changed"
	NotificationJobViewed                NotificationType = "job_viewed"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationJobCreated, NotificationApplicationReceived,
		NotificationApplicationStatusChanged, NotificationJobViewed:
		return true
	}
	return false
}

// Notification is a system-generated event addressed to one user.
type Notification struct {
	ID            string           `json:"id" db:"id"`
	UserID        string           `json:"user_id" db:"user_id"`
	Type          NotificationType `json:"type" db:"type"`
	JobID         *string          `json:"job_id,omitempty" db:"job_id"`
	ApplicationID *string          `json:"application_id,omitempty" db:"application_id"`
	Message       string           `json:"message" db:"message"`
	Read          bool             `json:"read" db:"read"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// Validate rejects notification rows with missing or unknown fields.
func (n *Notification) Validate() error {
	switch {
	case n.ID == "":
		return fmt.Errorf("%w: notification has no id", ErrMalformed)
	case n.UserID == "":
		return fmt.Errorf("%w: notification %s has no user", ErrMalformed, n.ID)
	case !n.Type.Valid():
		return fmt.Errorf("%w: notification %s has unknown type %q", ErrMalformed, n.ID, n.Type)
	case n.CreatedAt.IsZero():
		return fmt.Errorf("%w: notification %s has no timestamp", ErrMalformed, n.ID)
	}
	return nil
}

// CreateNotificationRequest is submitted by server-side trigger producers.
type CreateNotificationRequest struct {
	UserID        string           `json:"user_id"`
	Type          NotificationType `json:"type"`
	JobID         *string          `json:"job_id,omitempty"`
	ApplicationID *string          `json:"application_id,omitempty"`
	Message       string           `json:"message"`
}

// ListNotificationsResponse is the response for listing notifications.
type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
