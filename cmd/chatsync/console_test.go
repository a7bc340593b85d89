package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/models"
	"github.com/noah-isme/gema-chat-sync/internal/service"
	"github.com/noah-isme/gema-chat-sync/internal/store"
)

type consoleSync struct {
	service.SyncService

	mu       sync.Mutex
	selected []string
	pages    []int
	sent     []dto.SendMessageRequest
	read     []string
	state    store.State
	loadErrs []error
}

func (c *consoleSync) SelectRoom(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = append(c.selected, roomID)
	return nil
}

func (c *consoleSync) LoadMessages(_ context.Context, _ string, page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = append(c.pages, page)
	if len(c.loadErrs) > 0 {
		err := c.loadErrs[0]
		c.loadErrs = c.loadErrs[1:]
		return err
	}
	return nil
}

func (c *consoleSync) SendMessage(_ context.Context, request dto.SendMessageRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, request)
	return nil
}

func (c *consoleSync) MarkAsRead(_ context.Context, _ string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.read = append(c.read, ids...)
	return nil
}

func (c *consoleSync) Snapshot() store.State {
	return c.state
}

type silentEmitter struct{}

func (silentEmitter) StartTyping(string) error { return nil }
func (silentEmitter) StopTyping(string) error  { return nil }

func TestConsoleDrivesSession(t *testing.T) {
	session := &consoleSync{state: store.State{Messages: []models.Message{
		{ID: "m1", RoomID: "room-1"},
		{ID: "local-x", RoomID: "room-1", Pending: true},
		{ID: "m9", RoomID: "room-2"},
	}}}
	typing := service.NewTypingDebouncer(silentEmitter{}, time.Second, zerolog.Nop())
	defer typing.Close()

	input := strings.NewReader("hello before room\n/room room-1\nhalo semua\n/older\n/older\n/read\n")
	runConsole(context.Background(), input, session, typing, zerolog.Nop())

	require.Equal(t, []string{"room-1"}, session.selected)
	require.Equal(t, []int{2, 3}, session.pages)
	require.Len(t, session.sent, 1)
	require.Equal(t, dto.SendMessageRequest{RoomID: "room-1", Content: "halo semua"}, session.sent[0])
	require.Equal(t, []string{"m1"}, session.read)
	require.False(t, typing.IsTyping("room-1"))
}

func TestConsoleRetriesFailedOlderPage(t *testing.T) {
	session := &consoleSync{loadErrs: []error{errors.New("gateway timeout")}}
	typing := service.NewTypingDebouncer(silentEmitter{}, time.Second, zerolog.Nop())
	defer typing.Close()

	input := strings.NewReader("/room room-1\n/older\n/older\n/older\n")
	runConsole(context.Background(), input, session, typing, zerolog.Nop())

	require.Equal(t, []int{2, 2, 3}, session.pages)
}
