package leads

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/glec-io/lead-pipeline/pkg/logging"
)

func newTestCooldown(t *testing.T) (*CooldownCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCooldownCache(client, 5*time.Minute, logging.New("error")), mr
}

func TestCooldownAcquireBlocksRepeat(t *testing.T) {
	cache, _ := newTestCooldown(t)
	ctx := context.Background()

	if !cache.Acquire(ctx, "a@corp.kr", SourceDemoRequest) {
		t.Fatal("first Acquire should succeed")
	}
	if cache.Acquire(ctx, "a@corp.kr", SourceDemoRequest) {
		t.Fatal("second Acquire inside window should fail")
	}
	if !cache.Acquire(ctx, "a@corp.kr", SourceContactForm) {
		t.Fatal("different source shares no slot")
	}
	if !cache.Acquire(ctx, "b@corp.kr", SourceDemoRequest) {
		t.Fatal("different email shares no slot")
	}
}

func TestCooldownEmailCaseInsensitive(t *testing.T) {
	cache, _ := newTestCooldown(t)
	ctx := context.Background()

	cache.Acquire(ctx, "Lead@Corp.KR", SourceDemoRequest)
	if cache.Acquire(ctx, "lead@corp.kr", SourceDemoRequest) {
		t.Fatal("case variants must share the cooldown slot")
	}
}

func TestCooldownExpires(t *testing.T) {
	cache, mr := newTestCooldown(t)
	ctx := context.Background()

	cache.Acquire(ctx, "a@corp.kr", SourceDemoRequest)
	mr.FastForward(5*time.Minute + time.Second)
	if !cache.Acquire(ctx, "a@corp.kr", SourceDemoRequest) {
		t.Fatal("Acquire after window should succeed")
	}
}

func TestCooldownReleaseFreesSlot(t *testing.T) {
	cache, _ := newTestCooldown(t)
	ctx := context.Background()

	cache.Acquire(ctx, "a@corp.kr", SourceDemoRequest)
	cache.Release(ctx, "a@corp.kr", SourceDemoRequest)
	if !cache.Acquire(ctx, "a@corp.kr", SourceDemoRequest) {
		t.Fatal("Acquire after Release should succeed")
	}
}

func TestCooldownDegradesWhenRedisDown(t *testing.T) {
	cache, mr := newTestCooldown(t)
	mr.Close()

	if !cache.Acquire(context.Background(), "a@corp.kr", SourceDemoRequest) {
		t.Fatal("unreachable Redis must fail open")
	}
}

func TestNilCooldownAlwaysAllows(t *testing.T) {
	var cache *CooldownCache
	if !cache.Acquire(context.Background(), "a@corp.kr", SourceDemoRequest) {
		t.Fatal("nil cache must allow")
	}
	cache.Release(context.Background(), "a@corp.kr", SourceDemoRequest)
}
