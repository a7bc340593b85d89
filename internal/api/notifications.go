package api

import (
	"context"
	"net/http"

	"github.com/noah-isme/gema-chat-sync/internal/models"
)

// ListNotifications returns the current user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := c.doJSON(ctx, "notifications.list", http.MethodGet, "/notifications", nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead flags one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) (models.Notification, error) {
	var notification models.Notification
	err := c.doJSON(ctx, "notifications.read", http.MethodPatch, "/notifications/"+escape(notificationID)+"/read", nil, &notification)
	return notification, err
}
