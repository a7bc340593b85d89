package store

import (
	"time"

	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// Action is a state transition. The set of actions is closed: only types declared in this
// package implement it.
type Action interface {
	Type() string
	apply(State) State
}

// Reduce applies a single action to the state and returns the next state. It never mutates
// the slices held by the input state.
func Reduce(state State, action Action) State {
	if action == nil {
		return state
	}
	return action.apply(state)
}

type (
	// SetRooms replaces the room collection.
	SetRooms struct{ Rooms []models.Room }
	// AddRoom appends a room unless its identity is already present.
	AddRoom struct{ Room models.Room }
	// UpdateRoom merges a room by identity and refreshes the current-room reference.
	UpdateRoom struct{ Room models.Room }
	// RemoveRoom drops a room together with its messages, polls and typing signals.
	RemoveRoom struct{ RoomID string }
	// SetCurrentRoom selects a room; nil clears the selection.
	SetCurrentRoom struct{ Room *models.Room }

	// SetMessages replaces one room's slice of the message collection with page one.
	SetMessages struct {
		RoomID   string
		Messages []models.Message
	}
	// PrependMessages inserts an older history page in front of the room's slice.
	PrependMessages struct {
		RoomID   string
		Messages []models.Message
	}
	// AddMessage inserts a message; identity collisions are no-ops.
	AddMessage struct{ Message models.Message }
	// UpdateMessage shallow-merges a patch into the message with the patch's identity.
	UpdateMessage struct{ Patch models.MessagePatch }
	// RemoveMessage discards an entry, used for provisional messages whose send failed.
	RemoveMessage struct{ MessageID string }

	// SetPolls replaces one room's polls.
	SetPolls struct {
		RoomID string
		Polls  []models.Poll
	}
	// AddPoll inserts a poll; identity collisions are no-ops.
	AddPoll struct{ Poll models.Poll }
	// UpdatePoll replaces a known poll.
	UpdatePoll struct{ Poll models.Poll }
	// RemovePoll drops a poll.
	RemovePoll struct{ PollID string }

	// SetNotifications replaces the notification collection.
	SetNotifications struct{ Notifications []models.Notification }
	// AddNotification inserts a notification; identity collisions are no-ops.
	AddNotification struct{ Notification models.Notification }
	// UpdateNotification replaces a known notification.
	UpdateNotification struct{ Notification models.Notification }

	// AddTypingUser records a typing signal, keeping one per (user, room).
	AddTypingUser struct{ Signal models.TypingSignal }
	// RemoveTypingUser clears every signal of the user, whatever the room.
	RemoveTypingUser struct{ UserID string }
	// ExpireTypingUsers drops stamped signals received before the cutoff.
	ExpireTypingUsers struct{ Before time.Time }

	// SetLoading toggles the loading flag.
	SetLoading struct{ Loading bool }
	// SetError records the latest action error.
	SetError struct{ Message string }
	// ClearError resets the error string.
	ClearError struct{}
	// SetConnected mirrors the transport connectivity.
	SetConnected struct{ Connected bool }
)

func (SetRooms) Type() string           { return "SET_ROOMS" }
func (AddRoom) Type() string            { return "ADD_ROOM" }
func (UpdateRoom) Type() string         { return "UPDATE_ROOM" }
func (RemoveRoom) Type() string         { return "REMOVE_ROOM" }
func (SetCurrentRoom) Type() string     { return "SET_CURRENT_ROOM" }
func (SetMessages) Type() string        { return "SET_MESSAGES" }
func (PrependMessages) Type() string    { return "PREPEND_MESSAGES" }
func (AddMessage) Type() string         { return "ADD_MESSAGE" }
func (UpdateMessage) Type() string      { return "UPDATE_MESSAGE" }
func (RemoveMessage) Type() string      { return "REMOVE_MESSAGE" }
func (SetPolls) Type() string           { return "SET_POLLS" }
func (AddPoll) Type() string            { return "ADD_POLL" }
func (UpdatePoll) Type() string         { return "UPDATE_POLL" }
func (RemovePoll) Type() string         { return "REMOVE_POLL" }
func (SetNotifications) Type() string   { return "SET_NOTIFICATIONS" }
func (AddNotification) Type() string    { return "ADD_NOTIFICATION" }
func (UpdateNotification) Type() string { return "UPDATE_NOTIFICATION" }
func (AddTypingUser) Type() string      { return "ADD_TYPING_USER" }
func (RemoveTypingUser) Type() string   { return "REMOVE_TYPING_USER" }
func (ExpireTypingUsers) Type() string  { return "EXPIRE_TYPING_USERS" }
func (SetLoading) Type() string         { return "SET_LOADING" }
func (SetError) Type() string           { return "SET_ERROR" }
func (ClearError) Type() string         { return "CLEAR_ERROR" }
func (SetConnected) Type() string       { return "SET_CONNECTED" }

func (a SetRooms) apply(s State) State {
	s.Rooms = append([]models.Room(nil), a.Rooms...)
	if s.CurrentRoom != nil {
		if room, ok := s.Room(s.CurrentRoom.ID); ok {
			s.CurrentRoom = &room
		} else {
			s.CurrentRoom = nil
		}
	}
	return s
}

func (a AddRoom) apply(s State) State {
	if _, exists := s.Room(a.Room.ID); exists {
		return s
	}
	rooms := make([]models.Room, 0, len(s.Rooms)+1)
	rooms = append(rooms, s.Rooms...)
	s.Rooms = append(rooms, a.Room)
	return s
}

func (a UpdateRoom) apply(s State) State {
	index := -1
	for i, room := range s.Rooms {
		if room.ID == a.Room.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return s
	}
	return replaceRoom(s, index, a.Room)
}

func (a RemoveRoom) apply(s State) State {
	rooms := make([]models.Room, 0, len(s.Rooms))
	for _, room := range s.Rooms {
		if room.ID != a.RoomID {
			rooms = append(rooms, room)
		}
	}
	s.Rooms = rooms
	if s.CurrentRoom != nil && s.CurrentRoom.ID == a.RoomID {
		s.CurrentRoom = nil
	}
	s.Messages = filter(s.Messages, func(m models.Message) bool { return m.RoomID != a.RoomID })
	s.Polls = filter(s.Polls, func(p models.Poll) bool { return p.RoomID != a.RoomID })
	s.TypingUsers = filter(s.TypingUsers, func(t models.TypingSignal) bool { return t.RoomID != a.RoomID })
	return s
}

func (a SetCurrentRoom) apply(s State) State {
	if a.Room == nil {
		s.CurrentRoom = nil
		return s
	}
	room := *a.Room
	s.CurrentRoom = &room
	return s
}

func (a SetMessages) apply(s State) State {
	page := uniqueBy(a.Messages, func(m models.Message) string { return m.ID })
	s.Messages = mergeRoomSlice(s.Messages, a.RoomID, page,
		func(m models.Message) string { return m.RoomID },
		func(m models.Message) string { return m.ID },
		func(m models.Message) time.Time { return m.CreatedAt },
		func(existing models.Message, ids, clientIDs map[string]struct{}) bool {
			if !existing.Pending {
				return false
			}
			if existing.ClientID == "" {
				return true
			}
			_, settled := clientIDs[existing.ClientID]
			return !settled
		},
		func(m models.Message) string { return m.ClientID },
	)
	return s
}

func (a PrependMessages) apply(s State) State {
	present := make(map[string]struct{}, len(s.Messages))
	for _, message := range s.Messages {
		present[message.ID] = struct{}{}
	}

	older := make([]models.Message, 0, len(a.Messages))
	for _, message := range a.Messages {
		if _, ok := present[message.ID]; ok {
			continue
		}
		present[message.ID] = struct{}{}
		older = append(older, message)
	}
	if len(older) == 0 {
		return s
	}

	messages := make([]models.Message, 0, len(older)+len(s.Messages))
	messages = append(messages, older...)
	s.Messages = append(messages, s.Messages...)
	return s
}

func (a AddMessage) apply(s State) State {
	incoming := a.Message
	for _, message := range s.Messages {
		if message.ID == incoming.ID {
			return s
		}
	}

	messages := make([]models.Message, 0, len(s.Messages)+1)
	messages = append(messages, s.Messages...)

	replaced := false
	if incoming.ClientID != "" {
		for i, message := range messages {
			if message.Pending && message.ClientID == incoming.ClientID {
				messages[i] = incoming
				replaced = true
				break
			}
		}
	}
	if !replaced {
		messages = append(messages, incoming)
	}
	s.Messages = messages

	return bumpRoomActivity(s, incoming.RoomID, incoming.CreatedAt)
}

func (a UpdateMessage) apply(s State) State {
	for i, message := range s.Messages {
		if message.ID != a.Patch.ID {
			continue
		}
		messages := append([]models.Message(nil), s.Messages...)
		messages[i] = a.Patch.Apply(message)
		s.Messages = messages
		return s
	}
	return s
}

func (a RemoveMessage) apply(s State) State {
	s.Messages = filter(s.Messages, func(m models.Message) bool { return m.ID != a.MessageID })
	return s
}

func (a SetPolls) apply(s State) State {
	polls := uniqueBy(a.Polls, func(p models.Poll) string { return p.ID })
	s.Polls = mergeRoomSlice(s.Polls, a.RoomID, polls,
		func(p models.Poll) string { return p.RoomID },
		func(p models.Poll) string { return p.ID },
		func(p models.Poll) time.Time { return p.CreatedAt },
		nil,
		nil,
	)
	return s
}

func (a AddPoll) apply(s State) State {
	if _, exists := s.Poll(a.Poll.ID); exists {
		return s
	}
	polls := make([]models.Poll, 0, len(s.Polls)+1)
	polls = append(polls, s.Polls...)
	s.Polls = append(polls, a.Poll)
	return s
}

func (a UpdatePoll) apply(s State) State {
	for i, poll := range s.Polls {
		if poll.ID != a.Poll.ID {
			continue
		}
		polls := append([]models.Poll(nil), s.Polls...)
		polls[i] = a.Poll
		s.Polls = polls
		return s
	}
	return s
}

func (a RemovePoll) apply(s State) State {
	s.Polls = filter(s.Polls, func(p models.Poll) bool { return p.ID != a.PollID })
	return s
}

func (a SetNotifications) apply(s State) State {
	s.Notifications = uniqueBy(a.Notifications, func(n models.Notification) string { return n.ID })
	return s
}

func (a AddNotification) apply(s State) State {
	for _, notification := range s.Notifications {
		if notification.ID == a.Notification.ID {
			return s
		}
	}
	notifications := make([]models.Notification, 0, len(s.Notifications)+1)
	notifications = append(notifications, a.Notification)
	s.Notifications = append(notifications, s.Notifications...)
	return s
}

func (a UpdateNotification) apply(s State) State {
	for i, notification := range s.Notifications {
		if notification.ID != a.Notification.ID {
			continue
		}
		notifications := append([]models.Notification(nil), s.Notifications...)
		notifications[i] = a.Notification
		s.Notifications = notifications
		return s
	}
	return s
}

func (a AddTypingUser) apply(s State) State {
	signals := filter(s.TypingUsers, func(t models.TypingSignal) bool {
		return t.UserID != a.Signal.UserID || t.RoomID != a.Signal.RoomID
	})
	s.TypingUsers = append(signals, a.Signal)
	return s
}

// Scoped by user only: a stop in one room also clears that user's signal in other rooms.
func (a RemoveTypingUser) apply(s State) State {
	s.TypingUsers = filter(s.TypingUsers, func(t models.TypingSignal) bool { return t.UserID != a.UserID })
	return s
}

func (a ExpireTypingUsers) apply(s State) State {
	s.TypingUsers = filter(s.TypingUsers, func(t models.TypingSignal) bool {
		return t.ReceivedAt.IsZero() || !t.ReceivedAt.Before(a.Before)
	})
	return s
}

func (a SetLoading) apply(s State) State {
	s.IsLoading = a.Loading
	return s
}

func (a SetError) apply(s State) State {
	s.Error = a.Message
	return s
}

func (ClearError) apply(s State) State {
	s.Error = ""
	return s
}

func (a SetConnected) apply(s State) State {
	s.IsConnected = a.Connected
	return s
}

func replaceRoom(s State, index int, room models.Room) State {
	rooms := append([]models.Room(nil), s.Rooms...)
	rooms[index] = room
	s.Rooms = rooms
	if s.CurrentRoom != nil && s.CurrentRoom.ID == room.ID {
		current := room
		s.CurrentRoom = &current
	}
	return s
}

func bumpRoomActivity(s State, roomID string, at time.Time) State {
	for i, room := range s.Rooms {
		if room.ID != roomID {
			continue
		}
		if !at.After(room.LastActivity) {
			return s
		}
		room.LastActivity = at
		return replaceRoom(s, i, room)
	}
	return s
}
