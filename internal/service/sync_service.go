package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-chat-sync/internal/api"
	"github.com/noah-isme/gema-chat-sync/internal/auth"
	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/middleware"
	"github.com/noah-isme/gema-chat-sync/internal/models"
	"github.com/noah-isme/gema-chat-sync/internal/store"
	"github.com/noah-isme/gema-chat-sync/internal/transport"
)

const defaultPageSize = 50

var (
	// ErrNotConnected is returned by sends attempted without a live realtime connection.
	ErrNotConnected = errors.New("cannot send message: realtime connection is not established")
	// ErrRoomNotFound indicates the room is not part of the loaded collection.
	ErrRoomNotFound = errors.New("room not found")
	// ErrEmptyMessage indicates nothing remained to send after sanitising.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrPollClosed indicates a vote on an inactive or expired poll.
	ErrPollClosed = errors.New("poll is closed")
	// ErrInvalidVote indicates option indexes the poll cannot accept.
	ErrInvalidVote = errors.New("invalid poll vote")
)

// ChatAPI is the REST collaborator the coordinator depends on.
type ChatAPI interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	CreateRoom(ctx context.Context, request dto.CreateRoomRequest) (models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) (models.Room, error)
	UpdateRoomSettings(ctx context.Context, roomID string, request dto.RoomSettingsRequest) (models.Room, error)
	LeaveRoom(ctx context.Context, roomID string) (models.Room, error)
	ListMessages(ctx context.Context, query dto.HistoryQuery) ([]models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) (models.Message, error)
	MassDeleteMessages(ctx context.Context, request dto.MassDeleteRequest) ([]models.Message, error)
	ToggleReaction(ctx context.Context, messageID string, request dto.ReactionRequest) (models.Message, error)
	MarkRead(ctx context.Context, request dto.MarkReadRequest) error
	ListPolls(ctx context.Context, roomID string) ([]models.Poll, error)
	CreatePoll(ctx context.Context, request dto.CreatePollRequest) (models.Poll, error)
	VotePoll(ctx context.Context, pollID string, request dto.VotePollRequest) (models.Poll, error)
	ClosePoll(ctx context.Context, pollID string) (models.Poll, error)
	UpdatePoll(ctx context.Context, pollID string, request dto.UpdatePollRequest) (models.Poll, error)
	DeletePoll(ctx context.Context, pollID string) (models.Poll, error)
	UploadFile(ctx context.Context, name string, content io.Reader) (models.Attachment, error)
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) (models.Notification, error)
}

// RealtimeChannel is the transport surface the coordinator drives.
type RealtimeChannel interface {
	Initialize(ctx context.Context) error
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Subscribe(listener transport.Listener) func()
	JoinRoom(roomID string) error
	LeaveRoom(roomID string) error
	SendMessage(request dto.SendMessageRequest) error
	StartTyping(roomID string) error
	StopTyping(roomID string) error
	AddReaction(payload dto.ReactionPayload) error
	DeleteMessage(roomID, messageID string) error
	MassDelete(roomID string, messageIDs []string) error
	MarkRead(request dto.MarkReadRequest) error
}

// SessionTerminator ends the authenticated session.
type SessionTerminator interface {
	HardLogout(ctx context.Context, reason string) error
}

// SyncOptions tunes the coordinator.
type SyncOptions struct {
	UserID             string
	UserName           string
	PageSize           int
	Optimistic         bool
	RemoteTypingExpiry time.Duration
}

// SyncDependencies wires a coordinator.
type SyncDependencies struct {
	Store     *store.Store
	API       ChatAPI
	Channel   RealtimeChannel
	Session   SessionTerminator
	Validator *validator.Validate
	Logger    zerolog.Logger
	Options   SyncOptions
}

// SyncService reconciles REST results and realtime events into the store.
type SyncService interface {
	Start(ctx context.Context) error
	Close()
	Snapshot() store.State
	Subscribe(listener store.Listener) func()
	Reconnect(ctx context.Context) error

	LoadRooms(ctx context.Context) error
	SelectRoom(ctx context.Context, roomID string) error
	CreateRoom(ctx context.Context, request dto.CreateRoomRequest) (models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	UpdateRoomSettings(ctx context.Context, roomID string, request dto.RoomSettingsRequest) (models.Room, error)
	LeaveRoom(ctx context.Context, roomID string) error

	LoadMessages(ctx context.Context, roomID string, page int) error
	SendMessage(ctx context.Context, request dto.SendMessageRequest) error
	DeleteMessage(ctx context.Context, messageID string) error
	MassDeleteMessages(ctx context.Context, messageIDs []string) error
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error
	MarkAsRead(ctx context.Context, roomID string, messageIDs []string) error
	UploadFile(ctx context.Context, name string, content io.Reader) (models.Attachment, error)

	CreatePoll(ctx context.Context, request dto.CreatePollRequest) (models.Poll, error)
	VoteOnPoll(ctx context.Context, pollID string, optionIndexes []int) (models.Poll, error)
	ClosePoll(ctx context.Context, pollID string) (models.Poll, error)
	UpdatePoll(ctx context.Context, pollID string, request dto.UpdatePollRequest) (models.Poll, error)
	DeletePoll(ctx context.Context, pollID string) error

	StartTyping(roomID string) error
	StopTyping(roomID string) error

	LoadNotifications(ctx context.Context) error
	MarkNotificationRead(ctx context.Context, notificationID string) error

	ClearError()
}

type syncService struct {
	store     *store.Store
	api       ChatAPI
	channel   RealtimeChannel
	session   SessionTerminator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	opts      SyncOptions
	now       func() time.Time

	mu              sync.Mutex
	loadingRooms    bool
	loadingMessages map[string]struct{}
	loadingCount    int
	joined          map[string]struct{}
	started         bool

	unsubscribe func()
	baseCtx     context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewSyncService constructs the coordinator. Start attaches it to the realtime channel.
func NewSyncService(deps SyncDependencies) SyncService {
	// Outgoing bodies are HTML fragments: user markup is reduced to the UGC subset and bare
	// text is entity-encoded, so "a < b" travels as "a &lt; b".
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	validate := deps.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	opts := deps.Options
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &syncService{
		store:           deps.Store,
		api:             deps.API,
		channel:         deps.Channel,
		session:         deps.Session,
		validator:       validate,
		sanitizer:       sanitizer,
		logger:          deps.Logger.With().Str("component", "sync_service").Logger(),
		tracer:          otel.Tracer("github.com/noah-isme/gema-chat-sync/internal/service/sync"),
		opts:            opts,
		now:             time.Now,
		loadingMessages: make(map[string]struct{}),
		joined:          make(map[string]struct{}),
		baseCtx:         ctx,
		cancel:          cancel,
	}
}

func (s *syncService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.unsubscribe = s.channel.Subscribe(s.handleEvent)
	s.store.Dispatch(store.SetConnected{Connected: s.channel.IsConnected()})

	if s.opts.RemoteTypingExpiry > 0 {
		s.wg.Add(1)
		go s.expireTyping(s.opts.RemoteTypingExpiry)
	}

	if err := s.channel.Initialize(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("realtime channel not ready at start")
		return err
	}
	return nil
}

func (s *syncService) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.cancel()
		s.wg.Wait()
	})
}

func (s *syncService) Snapshot() store.State {
	return s.store.Snapshot()
}

func (s *syncService) Subscribe(listener store.Listener) func() {
	return s.store.Subscribe(listener)
}

func (s *syncService) Reconnect(ctx context.Context) error {
	return s.channel.Reconnect(ctx)
}

func (s *syncService) ClearError() {
	s.store.Dispatch(store.ClearError{})
}

// LoadRooms replaces the room collection. A call while another is outstanding is a no-op.
func (s *syncService) LoadRooms(ctx context.Context) error {
	s.mu.Lock()
	if s.loadingRooms {
		s.mu.Unlock()
		return nil
	}
	s.loadingRooms = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingRooms = false
		s.mu.Unlock()
	}()

	ctx, span := s.begin(ctx, "sync.load_rooms")
	defer span.End()

	s.beginLoading()
	defer s.endLoading()

	rooms, err := s.api.ListRooms(ctx)
	if err != nil {
		return s.fail(ctx, span, "load rooms", err)
	}

	s.store.Dispatch(store.SetRooms{Rooms: rooms})
	span.SetAttributes(attribute.Int("sync.rooms", len(rooms)))
	s.logger.Debug().Int("rooms", len(rooms)).Msg("rooms loaded")
	return nil
}

// SelectRoom sets the current room from the loaded collection and loads its history in the
// background. An empty id clears the selection.
func (s *syncService) SelectRoom(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		s.store.Dispatch(store.SetCurrentRoom{Room: nil})
		return nil
	}

	room, ok := s.store.Snapshot().Room(roomID)
	if !ok {
		return fmt.Errorf("select room %s: %w", roomID, ErrRoomNotFound)
	}
	s.store.Dispatch(store.SetCurrentRoom{Room: &room})

	s.background(func(ctx context.Context) {
		if err := s.LoadMessages(ctx, roomID, 1); err != nil {
			s.logger.Debug().Err(err).Str("room_id", roomID).Msg("background history load failed")
		}
	})
	s.joinRoom(roomID)
	return nil
}

func (s *syncService) CreateRoom(ctx context.Context, request dto.CreateRoomRequest) (models.Room, error) {
	ctx, span := s.begin(ctx, "sync.create_room")
	defer span.End()

	request.Name = strings.TrimSpace(s.sanitizer.Sanitize(request.Name))
	request.Description = strings.TrimSpace(s.sanitizer.Sanitize(request.Description))
	if err := s.validator.Struct(request); err != nil {
		return models.Room{}, s.fail(ctx, span, "create room", err)
	}

	room, err := s.api.CreateRoom(ctx, request)
	if err != nil {
		return models.Room{}, s.fail(ctx, span, "create room", err)
	}
	s.store.Dispatch(store.AddRoom{Room: room})
	return room, nil
}

func (s *syncService) DeleteRoom(ctx context.Context, roomID string) error {
	ctx, span := s.begin(ctx, "sync.delete_room", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	if _, err := s.api.DeleteRoom(ctx, roomID); err != nil {
		return s.fail(ctx, span, "delete room", err)
	}
	s.forgetRoom(roomID)
	s.store.Dispatch(store.RemoveRoom{RoomID: roomID})
	return nil
}

func (s *syncService) UpdateRoomSettings(ctx context.Context, roomID string, request dto.RoomSettingsRequest) (models.Room, error) {
	ctx, span := s.begin(ctx, "sync.update_room_settings", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	if err := s.validator.Struct(request); err != nil {
		return models.Room{}, s.fail(ctx, span, "update room settings", err)
	}
	room, err := s.api.UpdateRoomSettings(ctx, roomID, request)
	if err != nil {
		return models.Room{}, s.fail(ctx, span, "update room settings", err)
	}
	s.store.Dispatch(store.UpdateRoom{Room: room})
	return room, nil
}

// LeaveRoom removes the current user from the room and drops it locally.
func (s *syncService) LeaveRoom(ctx context.Context, roomID string) error {
	ctx, span := s.begin(ctx, "sync.leave_room", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	if _, err := s.api.LeaveRoom(ctx, roomID); err != nil {
		return s.fail(ctx, span, "leave room", err)
	}
	s.forgetRoom(roomID)
	s.store.Dispatch(store.RemoveRoom{RoomID: roomID})
	return nil
}

// LoadMessages fetches one history page. Page one replaces the room's slice and its polls and
// is guarded against concurrent loads per room; later pages prepend older messages.
func (s *syncService) LoadMessages(ctx context.Context, roomID string, page int) error {
	if page < 1 {
		page = 1
	}
	query := dto.HistoryQuery{RoomID: strings.TrimSpace(roomID), Page: page, Limit: s.opts.PageSize}
	if err := s.validator.Struct(query); err != nil {
		return err
	}

	if page == 1 {
		s.mu.Lock()
		if _, inFlight := s.loadingMessages[query.RoomID]; inFlight {
			s.mu.Unlock()
			return nil
		}
		s.loadingMessages[query.RoomID] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.loadingMessages, query.RoomID)
			s.mu.Unlock()
		}()
	}

	ctx, span := s.begin(ctx, "sync.load_messages", trace.WithAttributes(
		attribute.String("room.id", query.RoomID),
		attribute.Int("history.page", page),
	))
	defer span.End()

	s.beginLoading()
	defer s.endLoading()

	messages, err := s.api.ListMessages(ctx, query)
	if err != nil {
		return s.fail(ctx, span, "load messages", err)
	}

	if page > 1 {
		s.store.Dispatch(store.PrependMessages{RoomID: query.RoomID, Messages: messages})
		return nil
	}

	polls, err := s.api.ListPolls(ctx, query.RoomID)
	if err != nil {
		return s.fail(ctx, span, "load polls", err)
	}
	s.store.Dispatch(store.SetMessages{RoomID: query.RoomID, Messages: messages})
	s.store.Dispatch(store.SetPolls{RoomID: query.RoomID, Polls: polls})
	span.SetAttributes(attribute.Int("history.messages", len(messages)), attribute.Int("history.polls", len(polls)))
	return nil
}

// SendMessage emits the message over the realtime channel. It never queues: without a live
// connection it fails before any emit. The stored entry appears when the server echoes it,
// or immediately as a provisional entry when optimistic sends are enabled.
func (s *syncService) SendMessage(ctx context.Context, request dto.SendMessageRequest) error {
	_, span := s.begin(ctx, "sync.send_message", trace.WithAttributes(attribute.String("room.id", request.RoomID)))
	defer span.End()

	if !s.channel.IsConnected() {
		return s.fail(ctx, span, "send message", ErrNotConnected)
	}

	request.Content = strings.TrimSpace(s.sanitizer.Sanitize(request.Content))
	if request.Type == "" {
		request.Type = models.MessageTypeText
	}
	if request.Content == "" && len(request.Attachments) == 0 {
		return s.fail(ctx, span, "send message", ErrEmptyMessage)
	}
	if err := s.validator.Struct(request); err != nil {
		return s.fail(ctx, span, "send message", err)
	}
	if request.ClientID == "" {
		request.ClientID = uuid.NewString()
	}

	provisionalID := ""
	if s.opts.Optimistic {
		provisionalID = "local-" + request.ClientID
		s.store.Dispatch(store.AddMessage{Message: models.Message{
			ID:          provisionalID,
			ClientID:    request.ClientID,
			RoomID:      request.RoomID,
			SenderID:    s.opts.UserID,
			SenderName:  s.opts.UserName,
			Content:     request.Content,
			Type:        request.Type,
			Attachments: request.Attachments,
			ReplyTo:     request.ReplyTo,
			Pending:     true,
			CreatedAt:   s.now().UTC(),
		}})
	}

	if err := s.channel.SendMessage(request); err != nil {
		if provisionalID != "" {
			s.store.Dispatch(store.RemoveMessage{MessageID: provisionalID})
		}
		if errors.Is(err, transport.ErrNotConnected) {
			err = ErrNotConnected
		}
		return s.fail(ctx, span, "send message", err)
	}

	span.SetAttributes(attribute.String("message.client_id", request.ClientID))
	return nil
}

// DeleteMessage announces the delete to peers and merges the server's tombstone.
func (s *syncService) DeleteMessage(ctx context.Context, messageID string) error {
	ctx, span := s.begin(ctx, "sync.delete_message", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer span.End()

	if roomID := s.roomOfMessage(messageID); roomID != "" {
		s.emitQuietly("delete-message", s.channel.DeleteMessage(roomID, messageID))
	}

	message, err := s.api.DeleteMessage(ctx, messageID)
	if err != nil {
		return s.fail(ctx, span, "delete message", err)
	}
	s.mergeServerMessage(message, messageID)
	return nil
}

// MassDeleteMessages tombstones several messages of one room.
func (s *syncService) MassDeleteMessages(ctx context.Context, messageIDs []string) error {
	ctx, span := s.begin(ctx, "sync.mass_delete_messages", trace.WithAttributes(attribute.Int("message.count", len(messageIDs))))
	defer span.End()

	request := dto.MassDeleteRequest{MessageIDs: messageIDs}
	if len(messageIDs) > 0 {
		request.RoomID = s.roomOfMessage(messageIDs[0])
	}
	if err := s.validator.Struct(request); err != nil {
		return s.fail(ctx, span, "mass delete messages", err)
	}

	if request.RoomID != "" {
		s.emitQuietly("mass-delete", s.channel.MassDelete(request.RoomID, messageIDs))
	}

	messages, err := s.api.MassDeleteMessages(ctx, request)
	if err != nil {
		return s.fail(ctx, span, "mass delete messages", err)
	}

	returned := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		returned[message.ID] = struct{}{}
		s.mergeServerMessage(message, message.ID)
	}
	// The collaborator may answer with fewer entities than requested; the rest still get
	// the local tombstone so the timeline reflects the delete.
	now := s.now()
	for _, id := range messageIDs {
		if _, ok := returned[id]; !ok {
			s.store.Dispatch(store.UpdateMessage{Patch: models.Tombstone(id, now)})
		}
	}
	return nil
}

func (s *syncService) AddReaction(ctx context.Context, messageID, emoji string) error {
	return s.toggleReaction(ctx, "add reaction", messageID, emoji)
}

// RemoveReaction goes through the same toggle as AddReaction.
func (s *syncService) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	return s.toggleReaction(ctx, "remove reaction", messageID, emoji)
}

func (s *syncService) toggleReaction(ctx context.Context, operation, messageID, emoji string) error {
	ctx, span := s.begin(ctx, "sync.toggle_reaction", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer span.End()

	request := dto.ReactionRequest{Emoji: strings.TrimSpace(emoji)}
	if err := s.validator.Struct(request); err != nil {
		return s.fail(ctx, span, operation, err)
	}

	s.emitQuietly("add-reaction", s.channel.AddReaction(dto.ReactionPayload{
		RoomID:    s.roomOfMessage(messageID),
		MessageID: messageID,
		Emoji:     request.Emoji,
	}))

	message, err := s.api.ToggleReaction(ctx, messageID, request)
	if err != nil {
		return s.fail(ctx, span, operation, err)
	}
	s.mergeServerMessage(message, messageID)
	return nil
}

// MarkAsRead persists read receipts and notifies peers. Local read state is not predicted.
func (s *syncService) MarkAsRead(ctx context.Context, roomID string, messageIDs []string) error {
	ctx, span := s.begin(ctx, "sync.mark_read", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer span.End()

	request := dto.MarkReadRequest{RoomID: roomID, MessageIDs: messageIDs}
	if err := s.validator.Struct(request); err != nil {
		return s.fail(ctx, span, "mark as read", err)
	}

	s.emitQuietly("mark-read", s.channel.MarkRead(request))
	if err := s.api.MarkRead(ctx, request); err != nil {
		return s.fail(ctx, span, "mark as read", err)
	}
	return nil
}

// UploadFile uploads an attachment for a later SendMessage.
func (s *syncService) UploadFile(ctx context.Context, name string, content io.Reader) (models.Attachment, error) {
	ctx, span := s.begin(ctx, "sync.upload_file")
	defer span.End()

	attachment, err := s.api.UploadFile(ctx, name, content)
	if err != nil {
		return models.Attachment{}, s.fail(ctx, span, "upload file", err)
	}
	return attachment, nil
}

func (s *syncService) CreatePoll(ctx context.Context, request dto.CreatePollRequest) (models.Poll, error) {
	ctx, span := s.begin(ctx, "sync.create_poll", trace.WithAttributes(attribute.String("room.id", request.RoomID)))
	defer span.End()

	request.Question = strings.TrimSpace(s.sanitizer.Sanitize(request.Question))
	options := make([]string, 0, len(request.Options))
	for _, option := range request.Options {
		options = append(options, strings.TrimSpace(s.sanitizer.Sanitize(option)))
	}
	request.Options = options
	if err := s.validator.Struct(request); err != nil {
		return models.Poll{}, s.fail(ctx, span, "create poll", err)
	}

	poll, err := s.api.CreatePoll(ctx, request)
	if err != nil {
		return models.Poll{}, s.fail(ctx, span, "create poll", err)
	}
	s.store.Dispatch(store.AddPoll{Poll: poll})
	return poll, nil
}

// VoteOnPoll rejects votes the loaded poll cannot accept before calling the collaborator.
func (s *syncService) VoteOnPoll(ctx context.Context, pollID string, optionIndexes []int) (models.Poll, error) {
	ctx, span := s.begin(ctx, "sync.vote_poll", trace.WithAttributes(attribute.String("poll.id", pollID)))
	defer span.End()

	request := dto.VotePollRequest{OptionIndexes: optionIndexes}
	if err := s.validator.Struct(request); err != nil {
		return models.Poll{}, s.fail(ctx, span, "vote on poll", err)
	}
	if poll, ok := s.store.Snapshot().Poll(pollID); ok {
		if err := checkVote(poll, optionIndexes, s.now()); err != nil {
			return models.Poll{}, s.fail(ctx, span, "vote on poll", err)
		}
	}

	poll, err := s.api.VotePoll(ctx, pollID, request)
	if err != nil {
		return models.Poll{}, s.fail(ctx, span, "vote on poll", err)
	}
	s.store.Dispatch(store.UpdatePoll{Poll: poll})
	return poll, nil
}

func (s *syncService) ClosePoll(ctx context.Context, pollID string) (models.Poll, error) {
	ctx, span := s.begin(ctx, "sync.close_poll", trace.WithAttributes(attribute.String("poll.id", pollID)))
	defer span.End()

	poll, err := s.api.ClosePoll(ctx, pollID)
	if err != nil {
		return models.Poll{}, s.fail(ctx, span, "close poll", err)
	}
	s.store.Dispatch(store.UpdatePoll{Poll: poll})
	return poll, nil
}

func (s *syncService) UpdatePoll(ctx context.Context, pollID string, request dto.UpdatePollRequest) (models.Poll, error) {
	ctx, span := s.begin(ctx, "sync.update_poll", trace.WithAttributes(attribute.String("poll.id", pollID)))
	defer span.End()

	if request.Question != nil {
		question := strings.TrimSpace(s.sanitizer.Sanitize(*request.Question))
		request.Question = &question
	}
	if err := s.validator.Struct(request); err != nil {
		return models.Poll{}, s.fail(ctx, span, "update poll", err)
	}

	poll, err := s.api.UpdatePoll(ctx, pollID, request)
	if err != nil {
		return models.Poll{}, s.fail(ctx, span, "update poll", err)
	}
	s.store.Dispatch(store.UpdatePoll{Poll: poll})
	return poll, nil
}

func (s *syncService) DeletePoll(ctx context.Context, pollID string) error {
	ctx, span := s.begin(ctx, "sync.delete_poll", trace.WithAttributes(attribute.String("poll.id", pollID)))
	defer span.End()

	if _, err := s.api.DeletePoll(ctx, pollID); err != nil {
		return s.fail(ctx, span, "delete poll", err)
	}
	s.store.Dispatch(store.RemovePoll{PollID: pollID})
	return nil
}

// StartTyping fires the signal only; callers debounce.
func (s *syncService) StartTyping(roomID string) error {
	return s.channel.StartTyping(roomID)
}

func (s *syncService) StopTyping(roomID string) error {
	return s.channel.StopTyping(roomID)
}

func (s *syncService) LoadNotifications(ctx context.Context) error {
	ctx, span := s.begin(ctx, "sync.load_notifications")
	defer span.End()

	notifications, err := s.api.ListNotifications(ctx)
	if err != nil {
		return s.fail(ctx, span, "load notifications", err)
	}
	s.store.Dispatch(store.SetNotifications{Notifications: notifications})
	return nil
}

func (s *syncService) MarkNotificationRead(ctx context.Context, notificationID string) error {
	ctx, span := s.begin(ctx, "sync.mark_notification_read")
	defer span.End()

	notification, err := s.api.MarkNotificationRead(ctx, notificationID)
	if err != nil {
		return s.fail(ctx, span, "mark notification read", err)
	}
	s.store.Dispatch(store.UpdateNotification{Notification: notification})
	return nil
}

// fail surfaces err through the store and returns it. Authentication failures end the
// session.
// begin opens the span for one coordinator action. Every REST call the action makes shares
// the correlation id bound here.
func (s *syncService) begin(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, correlationID := middleware.EnsureCorrelation(ctx)
	ctx, span := s.tracer.Start(ctx, name, opts...)
	span.SetAttributes(attribute.String("correlation.id", correlationID))
	return ctx, span
}

func (s *syncService) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, operation)
	s.store.Dispatch(store.SetError{Message: fmt.Sprintf("%s: %v", operation, err)})

	if api.IsUnauthorized(err) || errors.Is(err, auth.ErrCredentialExpired) || errors.Is(err, auth.ErrCredentialMissing) {
		s.logger.Warn().Err(err).Str("operation", operation).Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).Msg("authentication rejected by collaborator")
		if s.session != nil {
			if logoutErr := s.session.HardLogout(context.WithoutCancel(ctx), "authentication rejected"); logoutErr != nil {
				s.logger.Error().Err(logoutErr).Msg("hard logout failed")
			}
		}
		return err
	}

	s.logger.Debug().Err(err).Str("operation", operation).Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).Msg("sync action failed")
	return err
}

func (s *syncService) mergeServerMessage(message models.Message, fallbackID string) {
	if message.ID == "" {
		message.ID = fallbackID
	}
	s.store.Dispatch(store.UpdateMessage{Patch: models.PatchFromMessage(message)})
}

func (s *syncService) roomOfMessage(messageID string) string {
	snapshot := s.store.Snapshot()
	if message, ok := snapshot.Message(messageID); ok {
		return message.RoomID
	}
	if snapshot.CurrentRoom != nil {
		return snapshot.CurrentRoom.ID
	}
	return ""
}

// emitQuietly logs the local failure of a fire-and-forget emit on a dual-path action.
func (s *syncService) emitQuietly(event string, err error) {
	if err != nil {
		s.logger.Debug().Err(err).Str("event", event).Msg("realtime emit skipped")
	}
}

func (s *syncService) joinRoom(roomID string) {
	s.mu.Lock()
	s.joined[roomID] = struct{}{}
	s.mu.Unlock()

	if !s.channel.IsConnected() {
		return
	}
	s.emitQuietly("join-room", s.channel.JoinRoom(roomID))
}

func (s *syncService) forgetRoom(roomID string) {
	s.mu.Lock()
	_, joined := s.joined[roomID]
	delete(s.joined, roomID)
	s.mu.Unlock()

	if joined && s.channel.IsConnected() {
		s.emitQuietly("leave-room", s.channel.LeaveRoom(roomID))
	}
}

func (s *syncService) rejoinRooms() {
	s.mu.Lock()
	rooms := make([]string, 0, len(s.joined))
	for roomID := range s.joined {
		rooms = append(rooms, roomID)
	}
	s.mu.Unlock()

	for _, roomID := range rooms {
		s.emitQuietly("join-room", s.channel.JoinRoom(roomID))
	}
}

func (s *syncService) beginLoading() {
	s.mu.Lock()
	s.loadingCount++
	first := s.loadingCount == 1
	s.mu.Unlock()
	if first {
		s.store.Dispatch(store.SetLoading{Loading: true})
	}
}

func (s *syncService) endLoading() {
	s.mu.Lock()
	s.loadingCount--
	last := s.loadingCount == 0
	s.mu.Unlock()
	if last {
		s.store.Dispatch(store.SetLoading{Loading: false})
	}
}

func (s *syncService) background(fn func(ctx context.Context)) {
	if s.baseCtx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.baseCtx)
	}()
}

func (s *syncService) expireTyping(expiry time.Duration) {
	defer s.wg.Done()

	interval := expiry / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			if len(s.store.Snapshot().TypingUsers) == 0 {
				continue
			}
			s.store.Dispatch(store.ExpireTypingUsers{Before: s.now().Add(-expiry)})
		}
	}
}

func checkVote(poll models.Poll, optionIndexes []int, now time.Time) error {
	if !poll.IsActive || poll.Expired(now) {
		return ErrPollClosed
	}
	if len(optionIndexes) > 1 && !poll.AllowMultiple {
		return fmt.Errorf("%w: poll accepts a single option", ErrInvalidVote)
	}
	seen := make(map[int]struct{}, len(optionIndexes))
	for _, index := range optionIndexes {
		if index < 0 || index >= len(poll.Options) {
			return fmt.Errorf("%w: option %d out of range", ErrInvalidVote, index)
		}
		if _, dup := seen[index]; dup {
			return fmt.Errorf("%w: option %d repeated", ErrInvalidVote, index)
		}
		seen[index] = struct{}{}
	}
	return nil
}
