package api

import (
	"context"
	"net/http"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// ListRooms returns every room the current user participates in.
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.doJSON(ctx, "rooms.list", http.MethodGet, "/chat/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetRoom returns one room.
func (c *Client) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := c.doJSON(ctx, "rooms.get", http.MethodGet, "/chat/rooms/"+escape(roomID), nil, &room)
	return room, err
}

// CreateRoom creates a room and returns it.
func (c *Client) CreateRoom(ctx context.Context, request dto.CreateRoomRequest) (models.Room, error) {
	var room models.Room
	err := c.doJSON(ctx, "rooms.create", http.MethodPost, "/chat/rooms", request, &room)
	return room, err
}

// DeleteRoom deletes a room and returns its final state.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := c.doJSON(ctx, "rooms.delete", http.MethodDelete, "/chat/rooms/"+escape(roomID), nil, &room)
	return room, err
}

// UpdateRoomSettings applies a settings patch.
func (c *Client) UpdateRoomSettings(ctx context.Context, roomID string, request dto.RoomSettingsRequest) (models.Room, error) {
	var room models.Room
	err := c.doJSON(ctx, "rooms.settings", http.MethodPut, "/chat/rooms/"+escape(roomID)+"/settings", request, &room)
	return room, err
}

// LeaveRoom removes the current user from the room's participants.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := c.doJSON(ctx, "rooms.leave", http.MethodPost, "/chat/rooms/"+escape(roomID)+"/leave", nil, &room)
	return room, err
}
