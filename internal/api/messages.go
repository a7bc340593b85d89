package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// ListMessages returns one history page, oldest first.
func (c *Client) ListMessages(ctx context.Context, query dto.HistoryQuery) ([]models.Message, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(query.Page))
	values.Set("limit", strconv.Itoa(query.Limit))

	var messages []models.Message
	err := c.do(ctx, call{
		operation: "messages.list",
		method:    http.MethodGet,
		path:      "/chat/rooms/" + escape(query.RoomID) + "/messages",
		query:     values,
	}, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteMessage soft-deletes a message and returns the tombstoned entity.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) (models.Message, error) {
	var message models.Message
	err := c.doJSON(ctx, "messages.delete", http.MethodDelete, "/chat/messages/"+escape(messageID), nil, &message)
	return message, err
}

// MassDeleteMessages soft-deletes several messages and returns the tombstoned entities.
func (c *Client) MassDeleteMessages(ctx context.Context, request dto.MassDeleteRequest) ([]models.Message, error) {
	var messages []models.Message
	if err := c.doJSON(ctx, "messages.mass_delete", http.MethodPost, "/chat/messages/mass-delete", request, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ToggleReaction adds or removes the emoji and returns the message with its reaction list.
func (c *Client) ToggleReaction(ctx context.Context, messageID string, request dto.ReactionRequest) (models.Message, error) {
	var message models.Message
	err := c.doJSON(ctx, "messages.reaction", http.MethodPost, "/chat/messages/"+escape(messageID)+"/reactions", request, &message)
	return message, err
}

// MarkRead persists read receipts.
func (c *Client) MarkRead(ctx context.Context, request dto.MarkReadRequest) error {
	return c.doJSON(ctx, "messages.mark_read", http.MethodPost, "/chat/rooms/"+escape(request.RoomID)+"/read", request, nil)
}
