package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter 控制请求速率，避免触发交易所限流（-1003）。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// TokenBucketLimiter 令牌桶，基于 x/time/rate。
type TokenBucketLimiter struct {
	lim *rate.Limiter
}

// NewTokenBucketLimiter rate 为每秒请求数，burst 为突发上限。
func NewTokenBucketLimiter(rps float64, burst int) *TokenBucketLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait 阻塞直到拿到令牌或 ctx 结束。
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

type unlimited struct{}

func (unlimited) Wait(context.Context) error { return nil }
