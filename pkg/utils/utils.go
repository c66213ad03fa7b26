// Package utils 提供重试与退避等通用工具
package utils

import (
	"context"
	"time"
)

// Backoff 指数退避，每次 Next 把间隔放大 1.5 倍直到 Max
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	current time.Duration
}

// Next 返回本次等待时长并推进退避
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	}
	d := b.current
	b.current = time.Duration(float64(b.current) * 1.5)
	if b.Max > 0 && b.current > b.Max {
		b.current = b.Max
	}
	return d
}

// Reset 成功后重置退避
func (b *Backoff) Reset() { b.current = 0 }

// Sleep 等待 d 或直到 ctx 取消，取消时返回 ctx.Err()
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryWithBackoff 带退避的重试
func RetryWithBackoff(ctx context.Context, maxAttempts int, initialDelay, maxDelay time.Duration, fn func() error) error {
	var lastErr error
	b := Backoff{Initial: initialDelay, Max: maxDelay}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			if err := Sleep(ctx, b.Next()); err != nil {
				return err
			}
		}
	}
	return lastErr
}
