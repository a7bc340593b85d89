package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// RoomLoader reloads the room collection.
type RoomLoader interface {
	LoadRooms(ctx context.Context) error
}

// MembershipSource delivers opaque "membership changed" signals until ctx is done.
type MembershipSource interface {
	Listen(ctx context.Context, notify func()) error
}

// NATSMembershipSource listens on <subject>.<userID>.
type NATSMembershipSource struct {
	conn    *nats.Conn
	subject string
}

// NewNATSMembershipSource builds a source for the user's membership subject.
func NewNATSMembershipSource(conn *nats.Conn, baseSubject, userID string) *NATSMembershipSource {
	subject := strings.TrimSuffix(strings.TrimSpace(baseSubject), ".")
	if userID != "" {
		subject = subject + "." + userID
	}
	return &NATSMembershipSource{conn: conn, subject: subject}
}

// Subject returns the subject the source subscribes to.
func (n *NATSMembershipSource) Subject() string {
	return n.subject
}

func (n *NATSMembershipSource) Listen(ctx context.Context, notify func()) error {
	if n.conn == nil {
		return fmt.Errorf("nats membership source: no connection")
	}
	sub, err := n.conn.Subscribe(n.subject, func(*nats.Msg) {
		notify()
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", n.subject, err)
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

// MembershipWatcher reloads rooms whenever membership changes. Signals that arrive while a
// reload is pending collapse into it.
type MembershipWatcher struct {
	loader  RoomLoader
	sources []MembershipSource
	signals chan struct{}
	logger  zerolog.Logger
}

// NewMembershipWatcher constructs a watcher over the given sources.
func NewMembershipWatcher(loader RoomLoader, logger zerolog.Logger, sources ...MembershipSource) *MembershipWatcher {
	return &MembershipWatcher{
		loader:  loader,
		sources: sources,
		signals: make(chan struct{}, 1),
		logger:  logger.With().Str("component", "membership_watcher").Logger(),
	}
}

// Notify signals a membership change from an in-process caller.
func (w *MembershipWatcher) Notify() {
	select {
	case w.signals <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (w *MembershipWatcher) Run(ctx context.Context) {
	for _, source := range w.sources {
		go func(source MembershipSource) {
			if err := source.Listen(ctx, w.Notify); err != nil {
				w.logger.Warn().Err(err).Msg("membership source stopped")
			}
		}(source)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signals:
			if err := w.loader.LoadRooms(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("room reload after membership change failed")
			}
		}
	}
}
