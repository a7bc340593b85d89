package models

import "time"

// NotificationPriority ranks notifications for display.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is a server-originated alert targeted at the current user.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	RoomID    string               `json:"roomId,omitempty"`
	MessageID string               `json:"messageId,omitempty"`
	Kind      string               `json:"type"`
	Title     string               `json:"title,omitempty"`
	Body      string               `json:"message"`
	Read      bool                 `json:"isRead"`
	Priority  NotificationPriority `json:"priority"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// TypingSignal is an ephemeral presence indicator for one user in one room.
type TypingSignal struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName,omitempty"`
	RoomID     string    `json:"roomId"`
	IsTyping   bool      `json:"isTyping"`
	ReceivedAt time.Time `json:"-"`
}
