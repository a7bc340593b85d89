package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type stubRefresher struct {
	calls int
	token string
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context, token string) (string, error) {
	s.calls++
	return s.token, s.err
}

type recordingNavigator struct {
	reasons []string
}

func (r *recordingNavigator) RedirectToLogin(reason string) {
	r.reasons = append(r.reasons, reason)
}

func TestIsExpired(t *testing.T) {
	now := time.Now()
	require.False(t, IsExpired(signedToken(t, now.Add(time.Hour)), now))
	require.True(t, IsExpired(signedToken(t, now.Add(-time.Minute)), now))
	require.True(t, IsExpired("not-a-jwt", now))
}

func TestCurrentReturnsValidTokenWithoutRefresh(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	refresher := &stubRefresher{}
	manager := NewManager(NewMemoryCredentialStore(token), refresher, nil, zerolog.Nop())

	got, err := manager.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, token, got)
	require.Zero(t, refresher.calls)
}

func TestCurrentRefreshesExpiredTokenExactlyOnce(t *testing.T) {
	store := NewMemoryCredentialStore(signedToken(t, time.Now().Add(-time.Minute)))
	fresh := signedToken(t, time.Now().Add(time.Hour))
	refresher := &stubRefresher{token: fresh}
	manager := NewManager(store, refresher, nil, zerolog.Nop())

	got, err := manager.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, got)
	require.Equal(t, 1, refresher.calls)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, persisted)
}

func TestCurrentFailsWhenRefreshFails(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("refresh rejected")}
	manager := NewManager(NewMemoryCredentialStore(signedToken(t, time.Now().Add(-time.Minute))), refresher, nil, zerolog.Nop())

	_, err := manager.Current(context.Background())
	require.ErrorIs(t, err, ErrCredentialExpired)
	require.Equal(t, 1, refresher.calls)
}

func TestCurrentWithoutCredential(t *testing.T) {
	manager := NewManager(NewMemoryCredentialStore(""), &stubRefresher{}, nil, zerolog.Nop())

	_, err := manager.Current(context.Background())
	require.ErrorIs(t, err, ErrCredentialMissing)
}

func TestHardLogoutClearsStoreAndRedirects(t *testing.T) {
	store := NewMemoryCredentialStore(signedToken(t, time.Now().Add(time.Hour)))
	navigator := &recordingNavigator{}
	manager := NewManager(store, nil, navigator, zerolog.Nop())

	require.NoError(t, manager.HardLogout(context.Background(), "authentication rejected"))

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, ErrCredentialMissing)
	require.Equal(t, []string{"authentication rejected"}, navigator.reasons)
}

func TestRedisCredentialStoreRoundTrip(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	store := NewRedisCredentialStore(client, "test:credential")
	ctx := context.Background()

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrCredentialMissing)

	require.NoError(t, store.Save(ctx, "bearer-token"))
	token, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "bearer-token", token)
	require.True(t, server.Exists("test:credential"))

	require.NoError(t, store.Clear(ctx))
	require.False(t, server.Exists("test:credential"))
}
