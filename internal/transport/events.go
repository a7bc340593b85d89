package transport

import (
	"encoding/json"
	"errors"
)

// EventName identifies an inbound channel event.
type EventName string

const (
	EventConnect         EventName = "connect"
	EventDisconnect      EventName = "disconnect"
	EventNewMessage      EventName = "new-message"
	EventUserJoined      EventName = "user-joined"
	EventUserLeft        EventName = "user-left"
	EventTyping          EventName = "typing"
	EventReactionUpdated EventName = "reaction-updated"
	EventMessageDeleted  EventName = "message-deleted"
	EventMessageUpdated  EventName = "message-updated"
	EventNotification    EventName = "notification"
	EventPollCreated     EventName = "poll-created"
	EventPollUpdated     EventName = "poll-updated"
	EventPollDeleted     EventName = "poll-deleted"
	EventError           EventName = "error"
)

// Outbound event names. None of them has a per-call acknowledgement; the server settles them
// by echoing the mutated entity.
const (
	EmitJoinRoom      = "join-room"
	EmitLeaveRoom     = "leave-room"
	EmitSendMessage   = "send-message"
	EmitTypingStart   = "typing-start"
	EmitTypingStop    = "typing-stop"
	EmitAddReaction   = "add-reaction"
	EmitDeleteMessage = "delete-message"
	EmitMassDelete    = "mass-delete"
	EmitMarkRead      = "mark-read"
)

var (
	// ErrNotConnected is returned by emits attempted without a live connection.
	ErrNotConnected = errors.New("realtime channel not connected")
	// ErrAuthRejected indicates the server refused the bearer.
	ErrAuthRejected = errors.New("realtime channel rejected credential")
	// ErrReconnectExhausted is reported once automatic reconnection gives up.
	ErrReconnectExhausted = errors.New("realtime channel reconnect attempts exhausted")
	// ErrSendBufferFull indicates the outbound queue is saturated.
	ErrSendBufferFull = errors.New("realtime channel send buffer full")
	// ErrClosed is returned once the channel has been torn down.
	ErrClosed = errors.New("realtime channel closed")
)

// Close codes the server uses to reject a bearer on an established connection.
const (
	CloseUnauthorized = 4401
	CloseForbidden    = 4403
)

// Envelope is the wire frame for both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is delivered to listeners. Payload holds the raw data of server events; Reason is set
// on disconnect and Err on error events.
type Event struct {
	Name    EventName
	Payload json.RawMessage
	Reason  string
	Err     error
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return errors.New("event has no payload")
	}
	return json.Unmarshal(e.Payload, v)
}

// Listener receives channel events.
type Listener func(Event)

// State is the connection lifecycle of a channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}
