package dto

import "github.com/noah-isme/gema-chat-sync/internal/models"

// RoomRef is the payload of join-room and leave-room.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// TypingPayload is exchanged for typing-start, typing-stop and the inbound typing event.
type TypingPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// ReactionPayload is the add-reaction emit.
type ReactionPayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// DeletePayload is the delete-message emit.
type DeletePayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// MassDeletePayload is the mass-delete emit.
type MassDeletePayload struct {
	RoomID     string   `json:"roomId"`
	MessageIDs []string `json:"messageIds"`
}

// MembershipPayload accompanies user-joined and user-left.
type MembershipPayload struct {
	RoomID string       `json:"roomId"`
	UserID string       `json:"userId"`
	Room   *models.Room `json:"room,omitempty"`
}

// PollDeletedPayload accompanies poll-deleted.
type PollDeletedPayload struct {
	PollID string `json:"pollId"`
	RoomID string `json:"roomId,omitempty"`
}

// MessageDeletedPayload accompanies message-deleted when the server sends identities only.
type MessageDeletedPayload struct {
	RoomID     string   `json:"roomId,omitempty"`
	MessageID  string   `json:"messageId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

// ErrorPayload is the body of an inbound error event.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
