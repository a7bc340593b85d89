package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/models"
	"github.com/noah-isme/gema-chat-sync/internal/store"
	"github.com/noah-isme/gema-chat-sync/internal/utils"
)

// SyncInspector is the read and recovery surface of the coordinator exposed over HTTP.
type SyncInspector interface {
	Snapshot() store.State
	Subscribe(listener store.Listener) func()
	Reconnect(ctx context.Context) error
}

// TimelineResponse is the interleaved view of one room.
type TimelineResponse struct {
	Room    models.Room            `json:"room"`
	Entries []models.TimelineEntry `json:"entries"`
	Typing  []models.TypingSignal  `json:"typing"`
}

// StateSummary carries counters that are cheap to scan in a terminal.
type StateSummary struct {
	Rooms               int `json:"rooms"`
	Messages            int `json:"messages"`
	Polls               int `json:"polls"`
	UnreadNotifications int `json:"unreadNotifications"`
}

// StreamFrame is pushed over the state stream after every store transition.
type StreamFrame struct {
	Connected   bool         `json:"connected"`
	Loading     bool         `json:"loading"`
	CurrentRoom string       `json:"currentRoom,omitempty"`
	Error       string       `json:"error,omitempty"`
	Summary     StateSummary `json:"summary"`
}

// SyncHandler exposes the coordinator snapshot for inspection.
type SyncHandler struct {
	sync   SyncInspector
	logger zerolog.Logger
}

// NewSyncHandler constructs the inspector handler.
func NewSyncHandler(sync SyncInspector, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		logger: logger.With().Str("component", "sync_handler").Logger(),
	}
}

// Register wires read routes. Reconnect is registered separately so it can carry its own limiter.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Get("/state", h.state)
	router.Get("/rooms/:id/timeline", h.timeline)

	router.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/stream", websocket.New(h.stream))
}

func summarize(snapshot store.State) StateSummary {
	return StateSummary{
		Rooms:               len(snapshot.Rooms),
		Messages:            len(snapshot.Messages),
		Polls:               len(snapshot.Polls),
		UnreadNotifications: len(snapshot.UnreadNotifications()),
	}
}

func frameOf(snapshot store.State) StreamFrame {
	frame := StreamFrame{
		Connected: snapshot.IsConnected,
		Loading:   snapshot.IsLoading,
		Error:     snapshot.Error,
		Summary:   summarize(snapshot),
	}
	if snapshot.CurrentRoom != nil {
		frame.CurrentRoom = snapshot.CurrentRoom.ID
	}
	return frame
}

func (h *SyncHandler) state(c *fiber.Ctx) error {
	snapshot := h.sync.Snapshot()
	return utils.OK(c, snapshot, "state retrieved", summarize(snapshot))
}

// stream pushes the current frame, then one frame per store transition. Bursts collapse
// to the latest state when the client reads slower than the store changes.
func (h *SyncHandler) stream(conn *websocket.Conn) {
	updates := make(chan store.State, 1)
	unsubscribe := h.sync.Subscribe(func(state store.State) {
		for {
			select {
			case updates <- state:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Info().Msg("state stream attached")
	defer h.logger.Info().Msg("state stream detached")

	if err := conn.WriteJSON(frameOf(h.sync.Snapshot())); err != nil {
		<-gone
		return
	}
	for {
		select {
		case <-gone:
			return
		case state := <-updates:
			if err := conn.WriteJSON(frameOf(state)); err != nil {
				h.logger.Debug().Err(err).Msg("state stream write failed")
				<-gone
				return
			}
		}
	}
}

func (h *SyncHandler) timeline(c *fiber.Ctx) error {
	roomID := strings.TrimSpace(c.Params("id"))
	if roomID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "room id is required")
	}

	snapshot := h.sync.Snapshot()
	room, ok := snapshot.Room(roomID)
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, "room not found")
	}

	return utils.SendSuccess(c, "timeline retrieved", TimelineResponse{
		Room:    room,
		Entries: snapshot.Timeline(roomID),
		Typing:  snapshot.TypingIn(roomID),
	})
}

// Reconnect asks the coordinator to re-establish the realtime channel. The outcome of the
// attempt is reported through the state, so the request is always accepted.
func (h *SyncHandler) Reconnect(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	message := "reconnect requested"
	if err := h.sync.Reconnect(requestContext(c)); err != nil {
		logger.Warn().Err(err).Msg("inspector reconnect failed")
		message = err.Error()
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, message, fiber.Map{
		"connected": h.sync.Snapshot().IsConnected,
	})
}
