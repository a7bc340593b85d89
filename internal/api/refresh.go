package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
)

// ErrRefreshRejected indicates the collaborator answered without a usable token.
var ErrRefreshRejected = errors.New("token refresh returned no token")

// Refresher exchanges an expired bearer for a new one. It does not consult any credential
// source, so it can back the credential manager itself.
type Refresher struct {
	client *Client
}

// NewRefresher builds a refresher against the same collaborator as the chat client.
func NewRefresher(baseURL string, httpClient *http.Client, logger zerolog.Logger) (*Refresher, error) {
	client, err := NewClient(baseURL, httpClient, nil, logger)
	if err != nil {
		return nil, err
	}
	return &Refresher{client: client}, nil
}

// Refresh presents the old token and returns the renewed one.
func (r *Refresher) Refresh(ctx context.Context, token string) (string, error) {
	request, err := jsonCall("auth.refresh", http.MethodPost, "/auth/refresh", dto.RefreshRequest{Token: token})
	if err != nil {
		return "", err
	}
	request.bearer = token

	var response dto.RefreshResponse
	if err := r.client.do(ctx, request, &response); err != nil {
		return "", err
	}
	renewed := strings.TrimSpace(response.Token)
	if renewed == "" {
		return "", ErrRefreshRejected
	}
	return renewed, nil
}
