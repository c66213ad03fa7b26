package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestLocalRateLimiterBurstAndRefill(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	limit := Limit{Rate: 2, Period: time.Second, Burst: 2}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "k", limit)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d should be allowed: %+v, %v", i, res, err)
		}
	}
	res, _ := l.Allow(ctx, "k", limit)
	if res.Allowed {
		t.Fatal("third request should be limited")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("expected positive retry-after, got %s", res.RetryAfter)
	}

	if other, _ := l.Allow(ctx, "other", limit); !other.Allowed {
		t.Error("keys must be limited independently")
	}

	now = now.Add(500 * time.Millisecond)
	if res, _ := l.Allow(ctx, "k", limit); !res.Allowed {
		t.Error("expected a token after refill")
	}
}

func TestLocalRateLimiterRejectsInvalidLimit(t *testing.T) {
	l := NewLocalRateLimiter()
	if _, err := l.Allow(context.Background(), "k", Limit{}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestLocalRateLimiterEvictsIdleKeys(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	limit := Limit{Rate: 10, Period: time.Second, Burst: 10}
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		if _, err := l.Allow(ctx, fmt.Sprintf("ratelimit:10.0.%d.%d", i/256, i%256), limit); err != nil {
			t.Fatalf("allow failed: %v", err)
		}
	}
	if got := len(l.entries); got != 10000 {
		t.Fatalf("expected 10000 tracked keys, got %d", got)
	}

	now = now.Add(24 * time.Hour)
	if res, _ := l.Allow(ctx, "ratelimit:fresh", limit); !res.Allowed {
		t.Fatal("fresh key should be allowed")
	}
	if got := len(l.entries); got != 1 {
		t.Errorf("expected idle keys evicted, %d retained", got)
	}
}

func TestLocalRateLimiterKeepsActiveKeys(t *testing.T) {
	l := NewLocalRateLimiter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	limit := Limit{Rate: 1, Period: time.Second, Burst: 1}
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "active", limit); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	// 清理阈值内再次访问，桶状态保留
	now = now.Add(100 * time.Millisecond)
	if res, _ := l.Allow(ctx, "active", limit); res.Allowed {
		t.Error("bucket state lost: second request should be limited")
	}
}
