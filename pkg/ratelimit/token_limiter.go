package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// TokenLimiter throttles LLM token consumption to a per-minute budget. It
// wraps x/time/rate with the burst sized to the full minute budget so one
// large reply does not starve forever.
type TokenLimiter struct {
	limiter      *rate.Limiter
	maxPerMinute int
}

// NewTokenLimiter creates a limiter allowing maxPerMinute tokens per minute.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	if maxPerMinute <= 0 {
		maxPerMinute = 1
	}
	return &TokenLimiter{
		limiter:      rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
		maxPerMinute: maxPerMinute,
	}
}

// Wait blocks until the given number of tokens is available or the context is
// canceled. Requests above the minute budget are clamped to the burst size.
func (t *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	if tokens > t.maxPerMinute {
		tokens = t.maxPerMinute
	}
	return t.limiter.WaitN(ctx, tokens)
}

// GetRemaining returns the number of tokens currently available.
func (t *TokenLimiter) GetRemaining() int {
	return int(t.limiter.Tokens())
}
