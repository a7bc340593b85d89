package store

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-sync/internal/observability"
)

// Listener observes every state produced by a dispatch.
type Listener func(State)

// Store is the single owner of the chat collections. Dispatches are applied one at a time
// and in call order; listeners run synchronously after each transition and must not
// dispatch from inside the callback.
type Store struct {
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners map[uint64]Listener
	nextID    uint64

	logger zerolog.Logger
}

// New creates an empty store.
func New(logger zerolog.Logger) *Store {
	return &Store{
		listeners: make(map[uint64]Listener),
		logger:    logger.With().Str("component", "chat_store").Logger(),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch applies the action and notifies listeners with the resulting state.
func (s *Store) Dispatch(action Action) State {
	if action == nil {
		return s.Snapshot()
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	next := Reduce(s.state, action)
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()

	observability.StoreDispatches().WithLabelValues(action.Type()).Inc()
	s.logger.Debug().Str("action", action.Type()).Msg("store transition applied")

	for _, listener := range listeners {
		listener(next)
	}
	return next
}

// Subscribe registers a listener and returns the function that removes it.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
