package models

import "time"

// RoomType enumerates the conversation kinds a room can represent.
type RoomType string

const (
	RoomTypeGroup      RoomType = "group"
	RoomTypeDirect     RoomType = "direct"
	RoomTypeIndividual RoomType = "individual"
	RoomTypeAdmin      RoomType = "admin"
)

// Participant is a member of a room together with the role they hold there.
type Participant struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	IsActive bool      `json:"isActive"`
}

// RoomSettings carries the per-room upload and retention policy.
type RoomSettings struct {
	AllowUploads      bool  `json:"allowUploads"`
	MaxFileSize       int64 `json:"maxFileSize"`
	RetentionDays     int   `json:"retentionDays"`
	DisappearingAfter int   `json:"disappearingAfterSeconds,omitempty"`
}

// Room is a named conversation context with its participant set.
type Room struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Type         RoomType      `json:"type"`
	Participants []Participant `json:"participants"`
	CreatedBy    string        `json:"createdBy"`
	IsActive     bool          `json:"isActive"`
	Settings     RoomSettings  `json:"settings"`
	LastActivity time.Time     `json:"lastActivity"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// HasParticipant reports whether the user is listed in the room.
func (r Room) HasParticipant(userID string) bool {
	for _, participant := range r.Participants {
		if participant.UserID == userID {
			return true
		}
	}
	return false
}

// WithParticipantActive returns a copy of the room where the user's activity flag is set,
// appending the user as a member when they are not yet listed.
func (r Room) WithParticipantActive(userID string, active bool, at time.Time) Room {
	participants := make([]Participant, 0, len(r.Participants)+1)
	found := false
	for _, participant := range r.Participants {
		if participant.UserID == userID {
			participant.IsActive = active
			found = true
		}
		participants = append(participants, participant)
	}
	if !found && active {
		participants = append(participants, Participant{
			UserID:   userID,
			Role:     "member",
			JoinedAt: at,
			IsActive: true,
		})
	}
	r.Participants = participants
	return r
}
