package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/service"
)

// runConsole drives the session from line input:
//
//	/room <id>    select a room and load its latest page
//	/older        load the next older page of the selected room
//	/read         mark the selected room's loaded messages as read
//	/reconnect    re-establish the realtime channel
//	anything else is sent as a message to the selected room
func runConsole(ctx context.Context, input io.Reader, coordinator service.SyncService, typing *service.TypingDebouncer, logger zerolog.Logger) {
	logger = logger.With().Str("component", "console").Logger()
	scanner := bufio.NewScanner(input)

	var roomID string
	page := 1

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		command, argument, _ := strings.Cut(line, " ")
		argument = strings.TrimSpace(argument)

		var err error
		switch command {
		case "/room":
			if err = coordinator.SelectRoom(ctx, argument); err == nil {
				roomID, page = argument, 1
			}
		case "/older":
			if roomID == "" {
				logger.Warn().Msg("select a room first")
				continue
			}
			if err = coordinator.LoadMessages(ctx, roomID, page+1); err == nil {
				page++
			}
		case "/read":
			if roomID == "" {
				logger.Warn().Msg("select a room first")
				continue
			}
			ids := make([]string, 0)
			for _, message := range coordinator.Snapshot().RoomMessages(roomID) {
				if !message.Pending {
					ids = append(ids, message.ID)
				}
			}
			err = coordinator.MarkAsRead(ctx, roomID, ids)
		case "/reconnect":
			err = coordinator.Reconnect(ctx)
		default:
			if roomID == "" {
				logger.Warn().Msg("select a room first")
				continue
			}
			typing.Input(roomID)
			err = coordinator.SendMessage(ctx, dto.SendMessageRequest{RoomID: roomID, Content: line})
			typing.Stop(roomID)
		}

		if err != nil {
			logger.Error().Err(err).Str("command", command).Msg("console command failed")
		}
	}
}
