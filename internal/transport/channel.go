package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/auth"
	"github.com/noah-isme/gema-chat-sync/internal/dto"
	"github.com/noah-isme/gema-chat-sync/internal/observability"
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectBaseDelay   = time.Second
	defaultPingInterval         = 30 * time.Second
	defaultWriteTimeout         = 10 * time.Second
	defaultHandshakeTimeout     = 10 * time.Second
	defaultSendBufferSize       = 64
	maxInboundFrameBytes        = 1 << 20
)

// CredentialSource yields the bearer to attach, refreshing it at most once when expired.
type CredentialSource interface {
	Current(ctx context.Context) (string, error)
}

// SessionTerminator performs the hard local logout.
type SessionTerminator interface {
	HardLogout(ctx context.Context, reason string) error
}

// Options configures a Channel.
type Options struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	PingInterval         time.Duration
	WriteTimeout         time.Duration
	HandshakeTimeout     time.Duration
	SendBufferSize       int
	Dialer               *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = defaultReconnectBaseDelay
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = defaultSendBufferSize
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: o.HandshakeTimeout,
		}
	}
	return o
}

// Channel owns the single realtime connection of an authenticated session. Rooms are
// subscriptions layered on it, never separate connections.
type Channel struct {
	opts        Options
	credentials CredentialSource
	terminator  SessionTerminator
	logger      zerolog.Logger

	mu              sync.Mutex
	state           State
	conn            *websocket.Conn
	send            chan []byte
	connDone        chan struct{}
	explicit        bool
	reconnectCancel context.CancelFunc
	reconnectGen    uint64
	closed          bool

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewChannel constructs a disconnected channel.
func NewChannel(opts Options, credentials CredentialSource, terminator SessionTerminator, logger zerolog.Logger) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		opts:        opts.withDefaults(),
		credentials: credentials,
		terminator:  terminator,
		logger:      logger.With().Str("component", "realtime_channel").Logger(),
		listeners:   make(map[uint64]Listener),
		baseCtx:     ctx,
		baseCancel:  cancel,
	}
}

// Subscribe attaches a listener. Detaching never affects the connection.
func (c *Channel) Subscribe(listener Listener) func() {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	c.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenersMu.Lock()
			delete(c.listeners, id)
			c.listenersMu.Unlock()
		})
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether emits can currently be delivered.
func (c *Channel) IsConnected() bool {
	return c.State() == StateConnected
}

// Initialize connects unless the channel is already connected or connecting. A bearer that
// is missing or cannot be refreshed ends the session instead of dialing.
func (c *Channel) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.explicit = false
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	token, err := c.credentials.Current(ctx)
	if err != nil {
		if isCredentialError(err) {
			c.handleAuthFailure("credential expired", auth.ErrCredentialExpired)
			return fmt.Errorf("initialize channel: %w", auth.ErrCredentialExpired)
		}
		c.setState(StateDisconnected)
		return fmt.Errorf("initialize channel: %w", err)
	}

	return c.Connect(ctx, token)
}

// Connect dials with the bearer attached. An authentication rejection ends the session; any
// other failure schedules bounded reconnection.
func (c *Channel) Connect(ctx context.Context, token string) error {
	conn, err := c.dial(ctx, token)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			c.handleAuthFailure("authentication rejected", ErrAuthRejected)
			return err
		}
		c.logger.Warn().Err(err).Msg("realtime connect failed, scheduling reconnect")
		c.setState(StateDisconnected)
		c.startReconnect()
		return err
	}
	return c.attach(conn)
}

// Reconnect is the explicit, user-triggered recovery once automatic attempts are exhausted.
func (c *Channel) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.cancelReconnectLocked()
	if c.state != StateConnected {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()
	return c.Initialize(ctx)
}

// Disconnect closes the connection on purpose; it never triggers automatic reconnection.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.explicit = true
	c.cancelReconnectLocked()
	wasConnected := c.conn != nil
	c.teardownLocked()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if wasConnected {
		c.logger.Info().Msg("realtime channel disconnected by client")
		c.emit(Event{Name: EventDisconnect, Reason: "client disconnect"})
	}
}

// Close disconnects and waits for every goroutine owned by the channel.
func (c *Channel) Close() {
	c.Disconnect()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.baseCancel()
	c.wg.Wait()
}

// Emit queues a fire-and-forget event. Only local failures are reported.
func (c *Channel) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	c.mu.Lock()
	if c.state != StateConnected || c.send == nil {
		c.mu.Unlock()
		observability.TransportEmits().WithLabelValues(event, "not_connected").Inc()
		return ErrNotConnected
	}
	send := c.send
	done := c.connDone
	c.mu.Unlock()

	select {
	case <-done:
		observability.TransportEmits().WithLabelValues(event, "not_connected").Inc()
		return ErrNotConnected
	default:
	}

	select {
	case send <- frame:
		observability.TransportEmits().WithLabelValues(event, "queued").Inc()
		return nil
	default:
		observability.TransportEmits().WithLabelValues(event, "dropped").Inc()
		return ErrSendBufferFull
	}
}

// JoinRoom subscribes the connection to a room's events.
func (c *Channel) JoinRoom(roomID string) error {
	return c.Emit(EmitJoinRoom, dto.RoomRef{RoomID: roomID})
}

// LeaveRoom drops the room subscription.
func (c *Channel) LeaveRoom(roomID string) error {
	return c.Emit(EmitLeaveRoom, dto.RoomRef{RoomID: roomID})
}

// SendMessage emits a message for the server to persist and echo.
func (c *Channel) SendMessage(request dto.SendMessageRequest) error {
	return c.Emit(EmitSendMessage, request)
}

// StartTyping signals that the local user started typing in the room.
func (c *Channel) StartTyping(roomID string) error {
	return c.Emit(EmitTypingStart, dto.TypingPayload{RoomID: roomID, IsTyping: true})
}

// StopTyping signals that the local user stopped typing in the room.
func (c *Channel) StopTyping(roomID string) error {
	return c.Emit(EmitTypingStop, dto.TypingPayload{RoomID: roomID, IsTyping: false})
}

// AddReaction emits the reaction toggle intent.
func (c *Channel) AddReaction(payload dto.ReactionPayload) error {
	return c.Emit(EmitAddReaction, payload)
}

// DeleteMessage emits the delete intent for immediate peer notification.
func (c *Channel) DeleteMessage(roomID, messageID string) error {
	return c.Emit(EmitDeleteMessage, dto.DeletePayload{RoomID: roomID, MessageID: messageID})
}

// MassDelete emits the bulk delete intent.
func (c *Channel) MassDelete(roomID string, messageIDs []string) error {
	return c.Emit(EmitMassDelete, dto.MassDeletePayload{RoomID: roomID, MessageIDs: messageIDs})
}

// MarkRead emits the read intent.
func (c *Channel) MarkRead(request dto.MarkReadRequest) error {
	return c.Emit(EmitMarkRead, request)
}

func (c *Channel) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	target, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.opts.Dialer.DialContext(ctx, target.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial realtime channel: %w", err)
	}
	return conn, nil
}

func (c *Channel) attach(conn *websocket.Conn) error {
	c.mu.Lock()
	if c.explicit || c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	if c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	send := make(chan []byte, c.opts.SendBufferSize)
	done := make(chan struct{})
	c.conn = conn
	c.send = send
	c.connDone = done
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.wg.Add(2)
	go c.writePump(conn, send, done)
	go c.readPump(conn, done)

	c.logger.Info().Msg("realtime channel connected")
	c.emit(Event{Name: EventConnect})
	return nil
}

func (c *Channel) readPump(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	pongWait := 2 * c.opts.PingInterval
	conn.SetReadLimit(maxInboundFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
			c.logger.Warn().Err(err).Msg("discarding malformed realtime frame")
			continue
		}
		observability.TransportEvents().WithLabelValues(envelope.Event).Inc()

		if EventName(envelope.Event) == EventError {
			var payload dto.ErrorPayload
			_ = json.Unmarshal(envelope.Data, &payload)
			if isAuthErrorCode(payload.Code) {
				c.handleAuthFailure("authentication rejected mid-session", ErrAuthRejected)
				return
			}
			c.emit(Event{Name: EventError, Payload: envelope.Data, Err: errors.New(payload.Message)})
			continue
		}

		c.emit(Event{Name: EventName(envelope.Event), Payload: envelope.Data})
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		c.wg.Done()
	}()

	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		}
	}
}

// handleDrop runs when the read loop ends. Drops of a connection that was already replaced
// or closed on purpose are ignored.
func (c *Channel) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	explicit := c.explicit
	c.teardownLocked()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if explicit {
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && (closeErr.Code == CloseUnauthorized || closeErr.Code == CloseForbidden) {
		c.handleAuthFailure("authentication rejected mid-session", ErrAuthRejected)
		return
	}

	c.logger.Warn().Err(err).Msg("realtime channel dropped")
	c.emit(Event{Name: EventDisconnect, Reason: err.Error()})
	c.startReconnect()
}

// handleAuthFailure tears the session down without scheduling any reconnect.
func (c *Channel) handleAuthFailure(reason string, cause error) {
	c.mu.Lock()
	c.explicit = true
	c.cancelReconnectLocked()
	wasConnected := c.conn != nil
	c.teardownLocked()
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	c.logger.Error().Err(cause).Str("reason", reason).Msg("realtime authentication failure")
	c.emit(Event{Name: EventError, Err: cause, Reason: reason})
	if wasConnected {
		c.emit(Event{Name: EventDisconnect, Reason: reason})
	}

	if c.terminator != nil {
		if err := c.terminator.HardLogout(context.Background(), reason); err != nil {
			c.logger.Error().Err(err).Msg("hard logout failed")
		}
	}
}

func (c *Channel) startReconnect() {
	c.mu.Lock()
	if c.explicit || c.closed || c.reconnectCancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.reconnectGen++
	gen := c.reconnectGen
	c.reconnectCancel = cancel
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.reconnectLoop(ctx, gen)
}

// reconnectLoop waits attempt × base delay before each redial, up to the attempt cap.
func (c *Channel) reconnectLoop(ctx context.Context, gen uint64) {
	defer c.wg.Done()
	defer c.releaseReconnect(gen)

	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		delay := time.Duration(attempt) * c.opts.ReconnectBaseDelay
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}

		observability.TransportReconnects().Inc()
		attemptLog := c.logger.With().Int("attempt", attempt).Dur("delay", delay).Logger()

		token, err := c.credentials.Current(ctx)
		if err != nil {
			if isCredentialError(err) {
				c.handleAuthFailure("credential expired", auth.ErrCredentialExpired)
				return
			}
			attemptLog.Warn().Err(err).Msg("reconnect could not obtain credential")
			continue
		}

		conn, err := c.dial(ctx, token)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				c.handleAuthFailure("authentication rejected", ErrAuthRejected)
				return
			}
			attemptLog.Warn().Err(err).Msg("reconnect attempt failed")
			continue
		}

		// The worker slot must be free before attach emits connect, so a
		// listener that observes a drop can schedule the next worker.
		if !c.releaseReconnect(gen) {
			_ = conn.Close()
			return
		}
		_ = c.attach(conn)
		return
	}

	c.mu.Lock()
	if c.reconnectGen != gen || c.reconnectCancel == nil {
		c.mu.Unlock()
		return
	}
	c.cancelReconnectLocked()
	c.setStateLocked(StateFailed)
	c.mu.Unlock()

	c.logger.Error().Int("attempts", c.opts.MaxReconnectAttempts).Msg("realtime reconnect attempts exhausted")
	c.emit(Event{Name: EventError, Err: ErrReconnectExhausted})
}

// releaseReconnect clears the worker slot when gen still owns it and
// reports whether it did.
func (c *Channel) releaseReconnect(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reconnectGen != gen || c.reconnectCancel == nil {
		return false
	}
	c.reconnectCancel()
	c.reconnectCancel = nil
	return true
}

func (c *Channel) emit(event Event) {
	c.listenersMu.RLock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

func (c *Channel) teardownLocked() {
	if c.connDone != nil {
		close(c.connDone)
		c.connDone = nil
	}
	c.conn = nil
	c.send = nil
}

func (c *Channel) cancelReconnectLocked() {
	if c.reconnectCancel != nil {
		c.reconnectCancel()
		c.reconnectCancel = nil
	}
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	c.setStateLocked(state)
	c.mu.Unlock()
}

func (c *Channel) setStateLocked(state State) {
	c.state = state
	observability.TransportState().Set(float64(state))
}

func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrCredentialExpired) || errors.Is(err, auth.ErrCredentialMissing)
}

func isAuthErrorCode(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "unauthorized", "auth_error", "token_expired", "forbidden":
		return true
	default:
		return false
	}
}
