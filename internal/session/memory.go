package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and early development.
// It honors TTLs against an injectable clock.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem

	// Clock is injectable for deterministic expiry tests.
	Clock func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), Clock: time.Now}
}

func (s *MemoryStore) SetJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiresAt = s.Clock().Add(ttl)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStore) GetJSON(_ context.Context, key string, out any) error {
	s.mu.Lock()
	item, ok := s.items[key]
	if ok && !item.expiresAt.IsZero() && s.Clock().After(item.expiresAt) {
		delete(s.items, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(item.data, out); err != nil {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// TTL reports the remaining TTL recorded for a key. Test helper.
func (s *MemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return 0, false
	}
	if item.expiresAt.IsZero() {
		return 0, true
	}
	return item.expiresAt.Sub(s.Clock()), true
}
