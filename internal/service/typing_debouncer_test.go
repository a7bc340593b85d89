package service

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingTypingEmitter struct {
	mu     sync.Mutex
	starts map[string]int
	stops  map[string]int
}

func newRecordingTypingEmitter() *recordingTypingEmitter {
	return &recordingTypingEmitter{starts: map[string]int{}, stops: map[string]int{}}
}

func (r *recordingTypingEmitter) StartTyping(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts[roomID]++
	return nil
}

func (r *recordingTypingEmitter) StopTyping(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops[roomID]++
	return nil
}

func (r *recordingTypingEmitter) counts(roomID string) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts[roomID], r.stops[roomID]
}

func TestTypingDebouncerEmitsOneStartPerBurst(t *testing.T) {
	emitter := newRecordingTypingEmitter()
	debouncer := NewTypingDebouncer(emitter, 80*time.Millisecond, zerolog.Nop())
	defer debouncer.Close()

	for i := 0; i < 5; i++ {
		debouncer.Input("r1")
		time.Sleep(10 * time.Millisecond)
	}

	starts, stops := emitter.counts("r1")
	require.Equal(t, 1, starts)
	require.Zero(t, stops)
	require.True(t, debouncer.IsTyping("r1"))

	require.Eventually(t, func() bool {
		_, stops := emitter.counts("r1")
		return stops == 1
	}, time.Second, 10*time.Millisecond)
	require.False(t, debouncer.IsTyping("r1"))

	debouncer.Input("r1")
	starts, _ = emitter.counts("r1")
	require.Equal(t, 2, starts)
}

func TestTypingDebouncerStopFlushesImmediately(t *testing.T) {
	emitter := newRecordingTypingEmitter()
	debouncer := NewTypingDebouncer(emitter, time.Hour, zerolog.Nop())
	defer debouncer.Close()

	debouncer.Input("r1")
	debouncer.Stop("r1")
	debouncer.Stop("r1")

	starts, stops := emitter.counts("r1")
	require.Equal(t, 1, starts)
	require.Equal(t, 1, stops)
}

func TestTypingDebouncerTracksRoomsIndependently(t *testing.T) {
	emitter := newRecordingTypingEmitter()
	debouncer := NewTypingDebouncer(emitter, time.Hour, zerolog.Nop())
	defer debouncer.Close()

	debouncer.Input("r1")
	debouncer.Input("r2")
	debouncer.Stop("r1")

	require.False(t, debouncer.IsTyping("r1"))
	require.True(t, debouncer.IsTyping("r2"))
	starts, _ := emitter.counts("r2")
	require.Equal(t, 1, starts)
}

func TestTypingDebouncerCloseCancelsTimers(t *testing.T) {
	emitter := newRecordingTypingEmitter()
	debouncer := NewTypingDebouncer(emitter, 30*time.Millisecond, zerolog.Nop())

	debouncer.Input("r1")
	debouncer.Close()
	time.Sleep(80 * time.Millisecond)

	_, stops := emitter.counts("r1")
	require.Zero(t, stops)

	debouncer.Input("r1")
	starts, _ := emitter.counts("r1")
	require.Equal(t, 1, starts)
}
