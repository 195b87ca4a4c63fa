package telephony

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallLimiter caps concurrent active calls per tenant. A nil limiter means
// unlimited.
type CallLimiter interface {
	Acquire(ctx context.Context, tenantID string) (bool, error)
	Release(ctx context.Context, tenantID string) error
}

// RedisCallLimiter enforces the cap with an atomic counter in redis. The TTL
// reclaims slots leaked by a crashed process or a busy-rejected call whose
// status event never arrives.
type RedisCallLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisCallLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisCallLimiter {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCallLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func capKey(tenantID string) string { return "cap:calls:" + tenantID }

// Acquire and release must both be atomic: the counter is incremented and
// checked in one script so two simultaneous call-start webhooks cannot both
// slip under the limit.

var acquireSlotScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = ttl_ms (int)
--
-- Returns 1 if a slot was acquired, 0 if the cap is reached.
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  -- Re-arm the TTL if the key somehow lost it.
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var releaseSlotScript = redis.NewScript(`
-- KEYS[1] = counter key
-- Decrement, and delete once no calls remain.
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

func (l *RedisCallLimiter) Acquire(ctx context.Context, tenantID string) (bool, error) {
	if l.rdb == nil {
		return false, fmt.Errorf("telephony: limiter redis client is nil")
	}
	if tenantID == "" {
		return false, fmt.Errorf("telephony: tenant id is required")
	}
	if l.limit <= 0 {
		return false, fmt.Errorf("telephony: limiter limit must be > 0")
	}

	res, err := acquireSlotScript.Run(ctx, l.rdb, []string{capKey(tenantID)}, l.limit, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (l *RedisCallLimiter) Release(ctx context.Context, tenantID string) error {
	if l.rdb == nil {
		return fmt.Errorf("telephony: limiter redis client is nil")
	}
	if tenantID == "" {
		return fmt.Errorf("telephony: tenant id is required")
	}
	_, err := releaseSlotScript.Run(ctx, l.rdb, []string{capKey(tenantID)}).Result()
	return err
}
