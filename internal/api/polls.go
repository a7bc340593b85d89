package api

import (
	"context"
	"net/http"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// ListPolls returns a room's polls.
func (c *Client) ListPolls(ctx context.Context, roomID string) ([]models.Poll, error) {
	var polls []models.Poll
	if err := c.doJSON(ctx, "polls.list", http.MethodGet, "/chat/rooms/"+escape(roomID)+"/polls", nil, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (c *Client) CreatePoll(ctx context.Context, request dto.CreatePollRequest) (models.Poll, error) {
	var poll models.Poll
	err := c.doJSON(ctx, "polls.create", http.MethodPost, "/chat/polls", request, &poll)
	return poll, err
}

func (c *Client) VotePoll(ctx context.Context, pollID string, request dto.VotePollRequest) (models.Poll, error) {
	var poll models.Poll
	err := c.doJSON(ctx, "polls.vote", http.MethodPost, "/chat/polls/"+escape(pollID)+"/vote", request, &poll)
	return poll, err
}

func (c *Client) ClosePoll(ctx context.Context, pollID string) (models.Poll, error) {
	var poll models.Poll
	err := c.doJSON(ctx, "polls.close", http.MethodPost, "/chat/polls/"+escape(pollID)+"/close", nil, &poll)
	return poll, err
}

func (c *Client) UpdatePoll(ctx context.Context, pollID string, request dto.UpdatePollRequest) (models.Poll, error) {
	var poll models.Poll
	err := c.doJSON(ctx, "polls.update", http.MethodPut, "/chat/polls/"+escape(pollID), request, &poll)
	return poll, err
}

// DeletePoll removes a poll and returns its last known state.
func (c *Client) DeletePoll(ctx context.Context, pollID string) (models.Poll, error) {
	var poll models.Poll
	err := c.doJSON(ctx, "polls.delete", http.MethodDelete, "/chat/polls/"+escape(pollID), nil, &poll)
	return poll, err
}
