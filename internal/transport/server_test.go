package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeRealtimeServer struct {
	t   *testing.T
	url string

	handshakes atomic.Int32

	mu       sync.Mutex
	conns    []*websocket.Conn
	writeMu  sync.Mutex
	received chan Envelope
	tokens   chan string
	headers  chan string
}

func startRealtimeServer(t *testing.T) *fakeRealtimeServer {
	t.Helper()

	server := &fakeRealtimeServer{
		t:        t,
		received: make(chan Envelope, 64),
		tokens:   make(chan string, 16),
		headers:  make(chan string, 16),
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/socket", func(w http.ResponseWriter, r *http.Request) {
		server.handshakes.Add(1)
		token := r.URL.Query().Get("token")
		if token == "rejected" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		offer(server.tokens, token)
		offer(server.headers, r.Header.Get("Authorization"))

		server.mu.Lock()
		server.conns = append(server.conns, conn)
		server.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var envelope Envelope
			if err := json.Unmarshal(data, &envelope); err == nil {
				offer(server.received, envelope)
			}
		}
	})

	httpServer := httptest.NewServer(mux)
	server.url = "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/socket"
	t.Cleanup(func() {
		server.dropAll()
		httpServer.Close()
	})
	return server
}

func offer[T any](ch chan T, value T) {
	select {
	case ch <- value:
	default:
	}
}

func (s *fakeRealtimeServer) latest() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *fakeRealtimeServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *fakeRealtimeServer) push(event EventName, payload interface{}) {
	s.t.Helper()
	conn := s.latest()
	if conn == nil {
		s.t.Fatalf("no server connection to push %s on", event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.t.Fatalf("marshal payload: %v", err)
	}
	frame, _ := json.Marshal(Envelope{Event: string(event), Data: data})

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.t.Fatalf("push %s: %v", event, err)
	}
}

func (s *fakeRealtimeServer) closeWith(code int, text string) {
	conn := s.latest()
	if conn == nil {
		return
	}
	s.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	_ = conn.Close()
}

// dropAll severs every live connection without a close frame.
func (s *fakeRealtimeServer) dropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

type stubCredentials struct {
	mu    sync.Mutex
	token string
	err   error
	calls int
}

func (s *stubCredentials) Current(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.token, s.err
}

type recordingTerminator struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingTerminator) HardLogout(_ context.Context, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	return nil
}

func (r *recordingTerminator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) listen(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(name EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, event := range r.events {
		if event.Name == name {
			total++
		}
	}
	return total
}

func (r *eventRecorder) find(name EventName) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Name == name {
			return event, true
		}
	}
	return Event{}, false
}

func (r *eventRecorder) hasError(target error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Name == EventError && errors.Is(event.Err, target) {
			return true
		}
	}
	return false
}

// countingDialer counts every TCP dial the channel performs.
func countingDialer(counter *atomic.Int32) *websocket.Dialer {
	base := &net.Dialer{Timeout: time.Second}
	return &websocket.Dialer{
		HandshakeTimeout: time.Second,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			counter.Add(1)
			return base.DialContext(ctx, network, addr)
		},
	}
}

func unusedAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve address: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return "ws://" + strings.TrimSpace(addr) + "/socket"
}
