package models

import "time"

// MessageType enumerates the payload kinds a message may carry.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// TombstoneContent replaces the body of a soft-deleted message.
const TombstoneContent = "This message was deleted"

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	Name     string `json:"fileName"`
	URL      string `json:"fileUrl"`
	MimeType string `json:"fileType"`
	Size     int64  `json:"fileSize"`
}

// ReplyReference points at the message being replied to.
type ReplyReference struct {
	MessageID string `json:"messageId"`
	Snippet   string `json:"content,omitempty"`
	SenderID  string `json:"senderId,omitempty"`
}

// Reaction is a single user's emoji on a message.
type Reaction struct {
	UserID    string    `json:"userId"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadReceipt records when a user read a message.
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is a single timeline entry in a room.
//
// ClientID is the correlation id generated by the sender and round-tripped by the server,
// Pending marks a provisional entry that has not been echoed back yet.
type Message struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"clientId,omitempty"`
	RoomID      string          `json:"roomId"`
	SenderID    string          `json:"senderId"`
	SenderName  string          `json:"senderName,omitempty"`
	Content     string          `json:"content"`
	Type        MessageType     `json:"messageType"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	ReplyTo     *ReplyReference `json:"replyTo,omitempty"`
	IsEdited    bool            `json:"isEdited"`
	EditedAt    *time.Time      `json:"editedAt,omitempty"`
	IsDeleted   bool            `json:"isDeleted"`
	DeletedAt   *time.Time      `json:"deletedAt,omitempty"`
	Reactions   []Reaction      `json:"reactions,omitempty"`
	ReadBy      []ReadReceipt   `json:"readBy,omitempty"`
	IsPinned    bool            `json:"isPinned"`
	Pending     bool            `json:"pending,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// MessagePatch lists the fields of a message an update may change. Nil fields are left as-is.
type MessagePatch struct {
	ID          string
	Content     *string
	Type        *MessageType
	Attachments *[]Attachment
	IsEdited    *bool
	EditedAt    *time.Time
	IsDeleted   *bool
	DeletedAt   *time.Time
	Reactions   *[]Reaction
	ReadBy      *[]ReadReceipt
	IsPinned    *bool
}

// Apply shallow-merges the patch into the message and returns the result.
func (p MessagePatch) Apply(message Message) Message {
	if p.Content != nil {
		message.Content = *p.Content
	}
	if p.Type != nil {
		message.Type = *p.Type
	}
	if p.Attachments != nil {
		message.Attachments = append([]Attachment(nil), (*p.Attachments)...)
	}
	if p.IsEdited != nil {
		message.IsEdited = *p.IsEdited
	}
	if p.EditedAt != nil {
		editedAt := *p.EditedAt
		message.EditedAt = &editedAt
	}
	if p.IsDeleted != nil {
		message.IsDeleted = *p.IsDeleted
	}
	if p.DeletedAt != nil {
		deletedAt := *p.DeletedAt
		message.DeletedAt = &deletedAt
	}
	if p.Reactions != nil {
		message.Reactions = append([]Reaction(nil), (*p.Reactions)...)
	}
	if p.ReadBy != nil {
		message.ReadBy = append([]ReadReceipt(nil), (*p.ReadBy)...)
	}
	if p.IsPinned != nil {
		message.IsPinned = *p.IsPinned
	}
	return message
}

// PatchFromMessage turns a server-provided entity into a patch covering every mutable field.
func PatchFromMessage(message Message) MessagePatch {
	patch := MessagePatch{
		ID:          message.ID,
		Content:     &message.Content,
		Type:        &message.Type,
		Attachments: &message.Attachments,
		IsEdited:    &message.IsEdited,
		EditedAt:    message.EditedAt,
		IsDeleted:   &message.IsDeleted,
		DeletedAt:   message.DeletedAt,
		Reactions:   &message.Reactions,
		ReadBy:      &message.ReadBy,
		IsPinned:    &message.IsPinned,
	}
	return patch
}

// Tombstone builds the soft-delete patch for the given message identity.
func Tombstone(id string, at time.Time) MessagePatch {
	content := TombstoneContent
	deleted := true
	deletedAt := at.UTC()
	return MessagePatch{
		ID:        id,
		Content:   &content,
		IsDeleted: &deleted,
		DeletedAt: &deletedAt,
	}
}
