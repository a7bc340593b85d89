package store

import (
	"sort"

	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// State is the immutable snapshot observers read between dispatches.
type State struct {
	Rooms         []models.Room         `json:"rooms"`
	CurrentRoom   *models.Room          `json:"currentRoom"`
	Messages      []models.Message      `json:"messages"`
	Polls         []models.Poll         `json:"polls"`
	Notifications []models.Notification `json:"notifications"`
	TypingUsers   []models.TypingSignal `json:"typingUsers"`
	IsLoading     bool                  `json:"isLoading"`
	IsConnected   bool                  `json:"isConnected"`
	Error         string                `json:"error"`
}

// Room looks a room up by identity.
func (s State) Room(id string) (models.Room, bool) {
	for _, room := range s.Rooms {
		if room.ID == id {
			return room, true
		}
	}
	return models.Room{}, false
}

// Message looks a message up by identity.
func (s State) Message(id string) (models.Message, bool) {
	for _, message := range s.Messages {
		if message.ID == id {
			return message, true
		}
	}
	return models.Message{}, false
}

// Poll looks a poll up by identity.
func (s State) Poll(id string) (models.Poll, bool) {
	for _, poll := range s.Polls {
		if poll.ID == id {
			return poll, true
		}
	}
	return models.Poll{}, false
}

// RoomMessages returns the room's slice of the message collection in stored order.
func (s State) RoomMessages(roomID string) []models.Message {
	out := make([]models.Message, 0)
	for _, message := range s.Messages {
		if message.RoomID == roomID {
			out = append(out, message)
		}
	}
	return out
}

// RoomPolls returns the polls belonging to the room.
func (s State) RoomPolls(roomID string) []models.Poll {
	out := make([]models.Poll, 0)
	for _, poll := range s.Polls {
		if poll.RoomID == roomID {
			out = append(out, poll)
		}
	}
	return out
}

// TypingIn returns the live typing signals of a room.
func (s State) TypingIn(roomID string) []models.TypingSignal {
	out := make([]models.TypingSignal, 0)
	for _, signal := range s.TypingUsers {
		if signal.RoomID == roomID && signal.IsTyping {
			out = append(out, signal)
		}
	}
	return out
}

// UnreadNotifications returns notifications not yet marked read.
func (s State) UnreadNotifications() []models.Notification {
	out := make([]models.Notification, 0)
	for _, notification := range s.Notifications {
		if !notification.Read {
			out = append(out, notification)
		}
	}
	return out
}

// Timeline interleaves the room's messages and polls by creation time. Messages keep their
// stored relative order.
func (s State) Timeline(roomID string) []models.TimelineEntry {
	messages := s.RoomMessages(roomID)
	polls := s.RoomPolls(roomID)

	entries := make([]models.TimelineEntry, 0, len(messages)+len(polls))
	for i := range messages {
		message := messages[i]
		entries = append(entries, models.TimelineEntry{Kind: models.TimelineMessage, At: message.CreatedAt, Message: &message})
	}
	for i := range polls {
		poll := polls[i]
		entries = append(entries, models.TimelineEntry{Kind: models.TimelinePoll, At: poll.CreatedAt, Poll: &poll})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	return entries
}
