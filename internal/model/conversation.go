package model

// Conversation summarizes the messages exchanged with one counterpart.
// It is derived on every pull and never stored.
type Conversation struct {
	CounterpartID string   `json:"counterpart_id"`
	Counterpart   *Profile `json:"counterpart,omitempty"`
	LastMessage   Message  `json:"last_message"`
	UnreadCount   int      `json:"unread_count"`
	ApplicationID *string  `json:"application_id,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	UnreadTotal   int            `json:"unread_total"`
}

// UnreadCountResponse is the response for the unread badge.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}
