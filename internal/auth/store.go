package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CredentialStore persists the bearer between process restarts.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryCredentialStore keeps the bearer in process memory.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryCredentialStore seeds an in-memory store with an optional token.
func NewMemoryCredentialStore(token string) *MemoryCredentialStore {
	return &MemoryCredentialStore{token: strings.TrimSpace(token)}
}

func (s *MemoryCredentialStore) Load(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrCredentialMissing
	}
	return s.token, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	return nil
}

func (s *MemoryCredentialStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// RedisCredentialStore keeps the bearer under a single Redis key.
type RedisCredentialStore struct {
	client *redis.Client
	key    string
}

// NewRedisCredentialStore constructs a store backed by the provided client.
func NewRedisCredentialStore(client *redis.Client, key string) *RedisCredentialStore {
	if key == "" {
		key = "chatsync:credential"
	}
	return &RedisCredentialStore{client: client, key: key}
}

func (s *RedisCredentialStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCredentialMissing
		}
		return "", fmt.Errorf("load credential: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrCredentialMissing
	}
	return token, nil
}

func (s *RedisCredentialStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *RedisCredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
