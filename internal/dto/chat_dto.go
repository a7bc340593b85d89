package dto

import (
	"time"

	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// SendMessageRequest is the payload emitted on send-message. Either content or at least one
// attachment must be present.
type SendMessageRequest struct {
	RoomID      string                 `json:"roomId" validate:"required,max=128"`
	ClientID    string                 `json:"clientId,omitempty" validate:"omitempty,max=64"`
	Content     string                 `json:"content" validate:"required_without=Attachments,max=4000"`
	Type        models.MessageType     `json:"messageType,omitempty" validate:"omitempty,oneof=text image file system"`
	Attachments []models.Attachment    `json:"attachments,omitempty" validate:"omitempty,max=10,dive"`
	ReplyTo     *models.ReplyReference `json:"replyTo,omitempty"`
}

// HistoryQuery selects one page of a room's message history.
type HistoryQuery struct {
	RoomID string `validate:"required,max=128"`
	Page   int    `validate:"min=1"`
	Limit  int    `validate:"min=1,max=100"`
}

// CreateRoomRequest creates a new room through the REST collaborator.
type CreateRoomRequest struct {
	Name           string          `json:"name" validate:"required,min=1,max=128"`
	Description    string          `json:"description,omitempty" validate:"max=500"`
	Type           models.RoomType `json:"type" validate:"required,oneof=group direct individual admin"`
	ParticipantIDs []string        `json:"participants" validate:"omitempty,max=500,dive,required,max=64"`
}

// RoomSettingsRequest updates a subset of a room's settings.
type RoomSettingsRequest struct {
	AllowUploads      *bool  `json:"allowUploads,omitempty"`
	MaxFileSize       *int64 `json:"maxFileSize,omitempty" validate:"omitempty,min=0"`
	RetentionDays     *int   `json:"retentionDays,omitempty" validate:"omitempty,min=0,max=3650"`
	DisappearingAfter *int   `json:"disappearingAfterSeconds,omitempty" validate:"omitempty,min=0"`
}

// ReactionRequest toggles an emoji on a message.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// MassDeleteRequest soft-deletes several messages of a room in one call.
type MassDeleteRequest struct {
	RoomID     string   `json:"roomId,omitempty" validate:"omitempty,max=128"`
	MessageIDs []string `json:"messageIds" validate:"required,min=1,max=100,dive,required"`
}

// MarkReadRequest marks messages of a room as read by the current user.
type MarkReadRequest struct {
	RoomID     string   `json:"roomId" validate:"required,max=128"`
	MessageIDs []string `json:"messageIds,omitempty" validate:"omitempty,dive,required"`
}

// CreatePollRequest creates a poll inside a room.
type CreatePollRequest struct {
	RoomID        string     `json:"roomId" validate:"required,max=128"`
	Question      string     `json:"question" validate:"required,min=1,max=500"`
	Options       []string   `json:"options" validate:"required,min=2,max=10,dive,required,max=200"`
	AllowMultiple bool       `json:"allowMultipleVotes"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// VotePollRequest casts votes for one or more option indexes.
type VotePollRequest struct {
	OptionIndexes []int `json:"optionIndexes" validate:"required,min=1,dive,min=0"`
}

// UpdatePollRequest edits a poll's mutable fields.
type UpdatePollRequest struct {
	Question  *string    `json:"question,omitempty" validate:"omitempty,min=1,max=500"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	IsActive  *bool      `json:"isActive,omitempty"`
}

// RefreshRequest exchanges an expired bearer for a fresh one.
type RefreshRequest struct {
	Token string `json:"token" validate:"required"`
}

// RefreshResponse carries the renewed bearer.
type RefreshResponse struct {
	Token string `json:"token"`
}
