package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("session: not found")

// Store is the ephemeral key-value contract used for per-call state.
// Values are JSON-serialized records with a per-key expiry.
type Store interface {
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, out any) error
	Delete(ctx context.Context, key string) error
}

// RedisStore implements Store on a shared redis client.
// Keys are namespaced so call state and conversation context never collide
// with other redis usage (caches, concurrency caps).
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal %q: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) GetJSON(ctx context.Context, key string, out any) error {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session: get %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A corrupt record is indistinguishable from an absent one for
		// callers; they re-initialize rather than crash mid-call.
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("session: delete %q: %w", key, err)
	}
	return nil
}
