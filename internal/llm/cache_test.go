package llm

import (
	"testing"
	"time"
)

func TestResponseCacheExpiry(t *testing.T) {
	c := NewResponseCache(5 * time.Minute)
	now := time.Unix(1700000000, 0)
	c.clock = func() time.Time { return now }

	key := CacheKey("hours", "what are your hours today please", "pest_control")
	c.Put(key, "We are open nine to five.")

	if got, ok := c.Get(key); !ok || got != "We are open nine to five." {
		t.Fatalf("expected cache hit, got %q ok=%v", got, ok)
	}

	now = now.Add(6 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected entry expired")
	}
}

func TestCacheKeyNormalizesPrefix(t *testing.T) {
	a := CacheKey("hours", "What Are Your Hours Today Please Sir And Madam", "pest_control")
	b := CacheKey("hours", "what are your hours today please", "pest_control")
	if a != b {
		t.Fatalf("expected normalized keys to match: %q vs %q", a, b)
	}
	if a == CacheKey("pricing", "what are your hours today please", "pest_control") {
		t.Fatalf("expected intent to separate keys")
	}
}

func TestCacheIgnoresEmptyText(t *testing.T) {
	c := NewResponseCache(time.Minute)
	c.Put("k", "")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected empty completion not cached")
	}
}
