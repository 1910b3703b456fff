// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key, all sharing the configured rate
// and burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	nowFunc func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// A new key starts with a full burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for key may proceed now, consuming a
// token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	now := l.nowFunc()
	l.mu.Unlock()

	return b.AllowN(now, 1)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Fits and full simulations run an optimizer, so they get tighter budgets
// than the closed-form tools.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"elisa_simulate":         NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"elisa_fit":              NewLimiter(1.0, 10),      // 60/minute, burst 10
		"elisa_invert":           NewLimiter(5.0, 20),      // 300/minute, burst 20
		"elisa_cv":               NewLimiter(5.0, 20),      // 300/minute, burst 20
		"elisa_detection_limits": NewLimiter(1.0, 10),      // 60/minute, burst 10
		"elisa_cutoff_classify":  NewLimiter(5.0, 20),      // 300/minute, burst 20
		"elisa_practice_plate":   NewLimiter(5.0, 20),      // 300/minute, burst 20
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}

	return nil
}
