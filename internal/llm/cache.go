package llm

import (
	"strings"
	"sync"
	"time"
)

// ResponseCache holds successful completions for repeated common queries,
// keyed by (intent, normalized utterance prefix, business type). Entries
// expire after a short fixed window; this trades a little staleness for
// latency and cost on the hot path.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration

	clock func() time.Time
}

type cacheEntry struct {
	text      string
	expiresAt time.Time
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// CacheKey normalizes an utterance to its lower-cased first few words so
// phrasing noise ("um, what are your hours") still hits.
func CacheKey(intent, utterance, businessType string) string {
	words := strings.Fields(strings.ToLower(utterance))
	if len(words) > 6 {
		words = words[:6]
	}
	return intent + "|" + strings.Join(words, " ") + "|" + businessType
}

func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.clock().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.text, true
}

func (c *ResponseCache) Put(key, text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{text: text, expiresAt: c.clock().Add(c.ttl)}
}
