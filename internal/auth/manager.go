package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCredentialMissing indicates no bearer is stored for the session.
	ErrCredentialMissing = errors.New("credential missing")
	// ErrCredentialExpired indicates the bearer expired and could not be refreshed.
	ErrCredentialExpired = errors.New("credential expired")
)

// Refresher exchanges an expired bearer for a new one.
type Refresher interface {
	Refresh(ctx context.Context, token string) (string, error)
}

// Navigator forces the presentation layer back to the unauthenticated view.
type Navigator interface {
	RedirectToLogin(reason string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(reason string)

// RedirectToLogin calls f(reason).
func (f NavigatorFunc) RedirectToLogin(reason string) { f(reason) }

// Manager hands out the session bearer and tears the session down when it cannot be
// renewed.
type Manager struct {
	mu        sync.Mutex
	store     CredentialStore
	refresher Refresher
	navigator Navigator
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager constructs a credential manager. refresher and navigator may be nil.
func NewManager(store CredentialStore, refresher Refresher, navigator Navigator, logger zerolog.Logger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		navigator: navigator,
		logger:    logger.With().Str("component", "credential_manager").Logger(),
		now:       time.Now,
	}
}

// Current returns a usable bearer. An expired bearer gets exactly one refresh attempt.
func (m *Manager) Current(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCredentialMissing) {
			return "", ErrCredentialMissing
		}
		return "", err
	}

	if !IsExpired(token, m.now()) {
		return token, nil
	}

	if m.refresher == nil {
		return "", ErrCredentialExpired
	}

	refreshed, err := m.refresher.Refresh(ctx, token)
	if err != nil || refreshed == "" {
		m.logger.Warn().Err(err).Msg("credential refresh failed")
		return "", ErrCredentialExpired
	}
	if IsExpired(refreshed, m.now()) {
		return "", ErrCredentialExpired
	}

	if err := m.store.Save(ctx, refreshed); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist refreshed credential")
	}
	m.logger.Info().Msg("credential refreshed")
	return refreshed, nil
}

// HardLogout clears the persisted credential and redirects to the unauthenticated view.
func (m *Manager) HardLogout(ctx context.Context, reason string) error {
	m.mu.Lock()
	err := m.store.Clear(ctx)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error().Err(err).Msg("failed to clear credential during logout")
	}
	m.logger.Warn().Str("reason", reason).Msg("session terminated")

	if m.navigator != nil {
		m.navigator.RedirectToLogin(reason)
	}
	return err
}
