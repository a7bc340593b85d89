package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultTypingIdle = time.Second

// TypingEmitter sends the typing signals a debouncer decides on.
type TypingEmitter interface {
	StartTyping(roomID string) error
	StopTyping(roomID string) error
}

type typingState struct {
	timer *time.Timer
	gen   uint64
}

// TypingDebouncer turns a stream of keystrokes into one start signal and one stop signal per
// burst of input. Each room owns a timer handle that Close cancels.
type TypingDebouncer struct {
	emitter TypingEmitter
	idle    time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*typingState
	closed bool
}

// NewTypingDebouncer builds a debouncer that emits stop after idle without input.
func NewTypingDebouncer(emitter TypingEmitter, idle time.Duration, logger zerolog.Logger) *TypingDebouncer {
	if idle <= 0 {
		idle = defaultTypingIdle
	}
	return &TypingDebouncer{
		emitter: emitter,
		idle:    idle,
		logger:  logger.With().Str("component", "typing_debouncer").Logger(),
		rooms:   make(map[string]*typingState),
	}
}

// Input records a keystroke in the room.
func (d *TypingDebouncer) Input(roomID string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	state, typing := d.rooms[roomID]
	if !typing {
		state = &typingState{}
		d.rooms[roomID] = state
	} else {
		state.timer.Stop()
	}
	state.gen++
	gen := state.gen
	state.timer = time.AfterFunc(d.idle, func() { d.expire(roomID, gen) })
	d.mu.Unlock()

	if !typing {
		d.emit(roomID, true)
	}
}

// Stop ends typing in the room immediately, e.g. when the message is sent.
func (d *TypingDebouncer) Stop(roomID string) {
	d.mu.Lock()
	state, typing := d.rooms[roomID]
	if typing {
		state.timer.Stop()
		delete(d.rooms, roomID)
	}
	d.mu.Unlock()

	if typing {
		d.emit(roomID, false)
	}
}

// IsTyping reports whether the local user is currently marked typing in the room.
func (d *TypingDebouncer) IsTyping(roomID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, typing := d.rooms[roomID]
	return typing
}

// Close cancels every pending timer without emitting.
func (d *TypingDebouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for roomID, state := range d.rooms {
		state.timer.Stop()
		delete(d.rooms, roomID)
	}
}

func (d *TypingDebouncer) expire(roomID string, gen uint64) {
	d.mu.Lock()
	state, typing := d.rooms[roomID]
	if !typing || state.gen != gen || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.rooms, roomID)
	d.mu.Unlock()

	d.emit(roomID, false)
}

func (d *TypingDebouncer) emit(roomID string, typing bool) {
	var err error
	if typing {
		err = d.emitter.StartTyping(roomID)
	} else {
		err = d.emitter.StopTyping(roomID)
	}
	if err != nil {
		d.logger.Debug().Err(err).Str("room_id", roomID).Bool("typing", typing).Msg("typing signal not sent")
	}
}
