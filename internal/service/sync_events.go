package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/models"
	"github.com/noah-isme/gema-chat-sync/internal/store"
	"github.com/noah-isme/gema-chat-sync/internal/transport"
)

// reactionUpdate is the reaction-updated payload. Servers send either the whole message or
// just the identity and its reaction list.
type reactionUpdate struct {
	ID        string            `json:"id"`
	MessageID string            `json:"messageId"`
	Reactions []models.Reaction `json:"reactions"`
}

// deletedEcho tombstones the entity a server echoes on delete, keeping its deletion time and
// tombstone text when present. Fields the echo omits stay as they are in the store.
func deletedEcho(message models.Message, now time.Time) models.MessagePatch {
	at := now
	if message.DeletedAt != nil {
		at = *message.DeletedAt
	}
	patch := models.Tombstone(message.ID, at)
	if message.Content != "" {
		patch.Content = &message.Content
	}
	return patch
}

// handleEvent normalises a realtime event into store actions.
func (s *syncService) handleEvent(event transport.Event) {
	switch event.Name {
	case transport.EventConnect:
		s.store.Dispatch(store.SetConnected{Connected: true})
		s.rejoinRooms()

	case transport.EventDisconnect:
		s.store.Dispatch(store.SetConnected{Connected: false})

	case transport.EventError:
		message := "realtime channel error"
		if event.Err != nil {
			message = event.Err.Error()
		}
		s.store.Dispatch(store.SetError{Message: message})

	case transport.EventNewMessage:
		var message models.Message
		if !s.decode(event, &message) || message.ID == "" {
			return
		}
		s.store.Dispatch(store.AddMessage{Message: message})

	case transport.EventMessageUpdated:
		var message models.Message
		if !s.decode(event, &message) || message.ID == "" {
			return
		}
		s.store.Dispatch(store.UpdateMessage{Patch: models.PatchFromMessage(message)})

	case transport.EventMessageDeleted:
		var message models.Message
		if !s.decode(event, &message) {
			return
		}
		if message.ID != "" {
			s.store.Dispatch(store.UpdateMessage{Patch: deletedEcho(message, s.now())})
			return
		}

		var payload dto.MessageDeletedPayload
		if !s.decode(event, &payload) {
			return
		}
		ids := payload.MessageIDs
		if payload.MessageID != "" {
			ids = append([]string{payload.MessageID}, ids...)
		}
		if len(ids) == 0 {
			s.logger.Warn().Msg("message-deleted event carried no message identity")
			return
		}
		now := s.now()
		for _, id := range ids {
			s.store.Dispatch(store.UpdateMessage{Patch: models.Tombstone(id, now)})
		}

	case transport.EventReactionUpdated:
		var payload reactionUpdate
		if !s.decode(event, &payload) {
			return
		}
		id := payload.MessageID
		if id == "" {
			id = payload.ID
		}
		if id == "" {
			return
		}
		reactions := payload.Reactions
		if reactions == nil {
			reactions = []models.Reaction{}
		}
		s.store.Dispatch(store.UpdateMessage{Patch: models.MessagePatch{ID: id, Reactions: &reactions}})

	case transport.EventUserJoined:
		s.applyMembership(event, true)

	case transport.EventUserLeft:
		s.applyMembership(event, false)

	case transport.EventTyping:
		var payload dto.TypingPayload
		if !s.decode(event, &payload) || payload.UserID == "" {
			return
		}
		if payload.UserID == s.opts.UserID {
			return
		}
		if !payload.IsTyping {
			s.store.Dispatch(store.RemoveTypingUser{UserID: payload.UserID})
			return
		}
		s.store.Dispatch(store.AddTypingUser{Signal: models.TypingSignal{
			UserID:     payload.UserID,
			UserName:   payload.UserName,
			RoomID:     payload.RoomID,
			IsTyping:   true,
			ReceivedAt: s.now(),
		}})

	case transport.EventNotification:
		var notification models.Notification
		if !s.decode(event, &notification) || notification.ID == "" {
			return
		}
		s.store.Dispatch(store.AddNotification{Notification: notification})

	case transport.EventPollCreated:
		var poll models.Poll
		if !s.decode(event, &poll) || poll.ID == "" {
			return
		}
		s.store.Dispatch(store.AddPoll{Poll: poll})

	case transport.EventPollUpdated:
		var poll models.Poll
		if !s.decode(event, &poll) || poll.ID == "" {
			return
		}
		s.store.Dispatch(store.UpdatePoll{Poll: poll})

	case transport.EventPollDeleted:
		var payload dto.PollDeletedPayload
		if !s.decode(event, &payload) || payload.PollID == "" {
			return
		}
		s.store.Dispatch(store.RemovePoll{PollID: payload.PollID})

	default:
		s.logger.Debug().Str("event", string(event.Name)).Msg("ignoring unknown realtime event")
	}
}

func (s *syncService) applyMembership(event transport.Event, joined bool) {
	var payload dto.MembershipPayload
	if !s.decode(event, &payload) || payload.RoomID == "" {
		return
	}

	self := payload.UserID != "" && payload.UserID == s.opts.UserID
	if self && !joined {
		s.forgetRoom(payload.RoomID)
		s.store.Dispatch(store.RemoveRoom{RoomID: payload.RoomID})
		return
	}

	snapshot := s.store.Snapshot()
	existing, known := snapshot.Room(payload.RoomID)

	switch {
	case payload.Room != nil && known:
		s.store.Dispatch(store.UpdateRoom{Room: *payload.Room})
	case payload.Room != nil:
		s.store.Dispatch(store.AddRoom{Room: *payload.Room})
	case known:
		s.store.Dispatch(store.UpdateRoom{Room: existing.WithParticipantActive(payload.UserID, joined, s.now())})
	case self:
		s.background(func(ctx context.Context) {
			if err := s.LoadRooms(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("room reload after membership change failed")
			}
		})
	}
}

func (s *syncService) decode(event transport.Event, out interface{}) bool {
	if len(event.Payload) == 0 {
		s.logger.Warn().Str("event", string(event.Name)).Msg("realtime event without payload")
		return false
	}
	if err := json.Unmarshal(event.Payload, out); err != nil {
		s.logger.Warn().Err(err).Str("event", string(event.Name)).Msg("malformed realtime payload")
		return false
	}
	return true
}
