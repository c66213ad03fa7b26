// Package ratelimit 提供基于 Redis 的分布式限流与基于 x/time/rate 的进程内限流
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter implements RateLimiter using Redis
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter creates a new RedisRateLimiter
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

// Allow checks if the request is allowed
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// idleRefills 空闲超过若干个完整回填周期的键会被清理
const idleRefills = 10

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter 进程内令牌桶限流，Redis 不可用时使用
// 每个键一个 rate.Limiter，长时间未访问的键定期清理
type LocalRateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalRateLimiter 创建进程内限流器
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow 检查是否允许请求
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid limit: rate=%d period=%s", limit.Rate, limit.Period)
	}
	burst := limit.Burst
	if burst <= 0 {
		burst = limit.Rate
	}
	every := rate.Every(limit.Period / time.Duration(limit.Rate))

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now, idleAfter(limit, burst))

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(every, burst)}
		l.entries[key] = e
	} else if e.limiter.Limit() != every || e.limiter.Burst() != burst {
		e.limiter.SetLimitAt(now, every)
		e.limiter.SetBurstAt(now, burst)
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &Result{
			RetryAfter: delay,
			ResetAfter: resetAfter(e.limiter, now, every, burst),
		}, nil
	}

	return &Result{
		Allowed:    true,
		Remaining:  int(e.limiter.TokensAt(now)),
		ResetAfter: resetAfter(e.limiter, now, every, burst),
	}, nil
}

// sweep 清理空闲超过 idle 的键，最多每个 idle 周期执行一次
func (l *LocalRateLimiter) sweep(now time.Time, idle time.Duration) {
	if now.Sub(l.lastSweep) < idle {
		return
	}
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > idle {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
}

// idleAfter 空闲阈值：桶从空到满所需时间的 idleRefills 倍，至少 idleRefills 个周期
func idleAfter(limit Limit, burst int) time.Duration {
	fill := limit.Period * time.Duration(burst) / time.Duration(limit.Rate)
	if fill < limit.Period {
		fill = limit.Period
	}
	return fill * idleRefills
}

func resetAfter(lim *rate.Limiter, now time.Time, every rate.Limit, burst int) time.Duration {
	missing := float64(burst) - lim.TokensAt(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(every) * float64(time.Second))
}
