package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/middleware"
	"github.com/noah-isme/gema-chat-sync/internal/models"
	"github.com/noah-isme/gema-chat-sync/internal/utils"
)

type staticCredentials struct {
	token string
	err   error
}

func (s staticCredentials) Current(context.Context) (string, error) {
	return s.token, s.err
}

func newTestClient(t *testing.T, app *fiber.App, creds CredentialSource) *Client {
	t.Helper()
	server := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/api/v1", server.Client(), creds, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/api", nil, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestListRoomsSendsBearerAndCorrelation(t *testing.T) {
	var authorization, correlation string
	app := fiber.New()
	app.Get("/api/v1/chat/rooms", func(c *fiber.Ctx) error {
		authorization = c.Get(fiber.HeaderAuthorization)
		correlation = c.Get("X-Correlation-ID")
		return utils.SendSuccess(c, "rooms fetched", []models.Room{{ID: "r1", Name: "General"}})
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-1")

	rooms, err := client.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "General", rooms[0].Name)
	require.Equal(t, "Bearer tok", authorization)
	require.Equal(t, "corr-1", correlation)
}

func TestListMessagesPassesPagination(t *testing.T) {
	var page, limit string
	app := fiber.New()
	app.Get("/api/v1/chat/rooms/:id/messages", func(c *fiber.Ctx) error {
		page = c.Query("page")
		limit = c.Query("limit")
		return utils.SendSuccess(c, "", []models.Message{
			{ID: "m1", RoomID: c.Params("id"), Content: "first"},
			{ID: "m2", RoomID: c.Params("id"), Content: "second"},
		})
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	messages, err := client.ListMessages(context.Background(), dto.HistoryQuery{RoomID: "r1", Page: 2, Limit: 25})
	require.NoError(t, err)
	require.Equal(t, "2", page)
	require.Equal(t, "25", limit)
	require.Len(t, messages, 2)
	require.Equal(t, "m1", messages[0].ID)
	require.Equal(t, "r1", messages[1].RoomID)
}

func TestUnauthorizedResponseMapsToSentinel(t *testing.T) {
	app := fiber.New()
	app.Delete("/api/v1/chat/messages/:id", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusUnauthorized, "token expired")
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	_, err := client.DeleteMessage(context.Background(), "m1")
	require.Error(t, err)
	require.True(t, IsUnauthorized(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "token expired", apiErr.Message)
	require.Equal(t, "messages.delete", apiErr.Operation)
}

func TestForbiddenResponseIsNotUnauthorized(t *testing.T) {
	app := fiber.New()
	app.Delete("/api/v1/chat/messages/:id", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusForbidden, "not your message")
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	_, err := client.DeleteMessage(context.Background(), "m1")
	require.ErrorIs(t, err, ErrForbidden)
	require.False(t, IsUnauthorized(err))
}

func TestNotFoundResponseMapsToSentinel(t *testing.T) {
	app := fiber.New()
	app.Get("/api/v1/chat/rooms/:id", func(c *fiber.Ctx) error {
		return utils.SendError(c, fiber.StatusNotFound, "room not found")
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	_, err := client.GetRoom(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialFailureSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	app := fiber.New()
	app.Get("/api/v1/chat/rooms", func(c *fiber.Ctx) error {
		hits.Add(1)
		return utils.SendSuccess(c, "", []models.Room{})
	})

	expired := errors.New("credential expired")
	client := newTestClient(t, app, staticCredentials{err: expired})
	_, err := client.ListRooms(context.Background())
	require.ErrorIs(t, err, expired)
	require.Zero(t, hits.Load())
}

func TestMassDeleteReturnsTombstones(t *testing.T) {
	now := time.Now().UTC()
	var received dto.MassDeleteRequest
	app := fiber.New()
	app.Post("/api/v1/chat/messages/mass-delete", func(c *fiber.Ctx) error {
		if err := c.BodyParser(&received); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid")
		}
		out := make([]models.Message, 0, len(received.MessageIDs))
		for _, id := range received.MessageIDs {
			out = append(out, models.Message{ID: id, Content: models.TombstoneContent, IsDeleted: true, DeletedAt: &now})
		}
		return utils.SendSuccess(c, "deleted", out)
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	messages, err := client.MassDeleteMessages(context.Background(), dto.MassDeleteRequest{RoomID: "r1", MessageIDs: []string{"m1", "m2"}})
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2"}, received.MessageIDs)
	require.Len(t, messages, 2)
	for _, message := range messages {
		require.True(t, message.IsDeleted)
		require.NotNil(t, message.DeletedAt)
	}
}

func TestPollRoundTrips(t *testing.T) {
	app := fiber.New()
	app.Post("/api/v1/chat/polls/:id/vote", func(c *fiber.Ctx) error {
		var request dto.VotePollRequest
		if err := c.BodyParser(&request); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid")
		}
		return utils.SendSuccess(c, "", models.Poll{
			ID:         c.Params("id"),
			Options:    []models.PollOption{{Text: "a", Votes: 1}, {Text: "b"}},
			TotalVotes: len(request.OptionIndexes),
			IsActive:   true,
		})
	})
	app.Post("/api/v1/chat/polls/:id/close", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", models.Poll{ID: c.Params("id"), IsActive: false})
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	poll, err := client.VotePoll(context.Background(), "p1", dto.VotePollRequest{OptionIndexes: []int{0}})
	require.NoError(t, err)
	require.Equal(t, 1, poll.TotalVotes)
	require.True(t, poll.IsActive)

	closed, err := client.ClosePoll(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, closed.IsActive)
}

func TestUploadFileSniffsContentType(t *testing.T) {
	var partType, fileName string
	app := fiber.New()
	app.Post("/api/v1/chat/upload", func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "file required")
		}
		partType = file.Header.Get("Content-Type")
		fileName = file.Filename
		return utils.SendSuccess(c, "", models.Attachment{URL: "https://cdn.example.com/" + file.Filename})
	})

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	size := int64(buf.Len())

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	attachment, err := client.UploadFile(context.Background(), "diagram.txt", &buf)
	require.NoError(t, err)
	require.Equal(t, "image/png", partType)
	require.Equal(t, "diagram.txt", fileName)
	require.Equal(t, "image/png", attachment.MimeType)
	require.Equal(t, size, attachment.Size)
	require.True(t, strings.HasSuffix(attachment.URL, "diagram.txt"))
}

func TestUploadFileRejectsEmpty(t *testing.T) {
	client := newTestClient(t, fiber.New(), staticCredentials{token: "tok"})
	_, err := client.UploadFile(context.Background(), "empty.txt", strings.NewReader(""))
	require.ErrorIs(t, err, ErrUploadEmpty)
}

func TestRefresherPresentsOldToken(t *testing.T) {
	var authorization string
	app := fiber.New()
	app.Post("/api/v1/auth/refresh", func(c *fiber.Ctx) error {
		authorization = c.Get(fiber.HeaderAuthorization)
		var request dto.RefreshRequest
		if err := c.BodyParser(&request); err != nil || request.Token == "" {
			return utils.SendError(c, fiber.StatusBadRequest, "token required")
		}
		return utils.SendSuccess(c, "", dto.RefreshResponse{Token: "renewed-" + request.Token})
	})
	server := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(server.Close)

	refresher, err := NewRefresher(server.URL+"/api/v1", server.Client(), zerolog.Nop())
	require.NoError(t, err)

	token, err := refresher.Refresh(context.Background(), "old")
	require.NoError(t, err)
	require.Equal(t, "renewed-old", token)
	require.Equal(t, "Bearer old", authorization)
}

func TestRefresherRejectsEmptyToken(t *testing.T) {
	app := fiber.New()
	app.Post("/api/v1/auth/refresh", func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", dto.RefreshResponse{})
	})
	server := httptest.NewServer(adaptor.FiberApp(app))
	t.Cleanup(server.Close)

	refresher, err := NewRefresher(server.URL+"/api/v1", server.Client(), zerolog.Nop())
	require.NoError(t, err)

	_, err = refresher.Refresh(context.Background(), "old")
	require.ErrorIs(t, err, ErrRefreshRejected)
}

func TestMarkReadAcceptsNoContent(t *testing.T) {
	app := fiber.New()
	app.Post("/api/v1/chat/rooms/:id/read", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	client := newTestClient(t, app, staticCredentials{token: "tok"})
	require.NoError(t, client.MarkRead(context.Background(), dto.MarkReadRequest{RoomID: "r1"}))
}
