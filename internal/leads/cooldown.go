package leads

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// CooldownCache is a Redis fast path for the duplicate-submission check.
// The SQL window query remains authoritative; the cache only short-circuits
// the common repeat-click case without a round trip to Postgres. A nil
// cache, or an unreachable Redis, degrades to allowing the request through.
type CooldownCache struct {
	client *redis.Client
	window time.Duration
	logger *logging.Logger
}

// NewCooldownCache wraps the Redis client. Returns nil when client is nil.
func NewCooldownCache(client *redis.Client, window time.Duration, logger *logging.Logger) *CooldownCache {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CooldownCache{client: client, window: window, logger: logger}
}

func cooldownKey(email string, source Source) string {
	return "lead:cooldown:" + string(source) + ":" + strings.ToLower(strings.TrimSpace(email))
}

// Acquire claims the cooldown slot for email+source. It returns false when
// an identical submission already holds the slot.
func (c *CooldownCache) Acquire(ctx context.Context, email string, source Source) bool {
	if c == nil {
		return true
	}
	ok, err := c.client.SetNX(ctx, cooldownKey(email, source), 1, c.window).Result()
	if err != nil {
		c.logger.Warn("cooldown cache unavailable, falling back to sql check", "error", err)
		return true
	}
	return ok
}

// Release frees the slot early, used when the submission ultimately failed
// so a corrected retry is not locked out for the full window.
func (c *CooldownCache) Release(ctx context.Context, email string, source Source) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, cooldownKey(email, source)).Err(); err != nil {
		c.logger.Warn("cooldown release failed", "error", err)
	}
}
