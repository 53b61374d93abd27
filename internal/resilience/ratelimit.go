package resilience

import (
	"sync"
	"time"
)

// RateLimiterConfig holds sliding-window limits.
type RateLimiterConfig struct {
	MaxRequests int           // allowed requests per key within Window
	Window      time.Duration // sliding window size
}

// DefaultRateLimiterConfig returns production defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{MaxRequests: 30, Window: 60 * time.Second}
}

// RateLimiter is a per-key sliding-window rate limiter. The window boundary
// moves continuously with each check rather than resetting on a fixed edge,
// so a full burst followed by new requests one window later is always allowed.
//
// Expired timestamps are pruned lazily on the next check for their key. Keys
// themselves are never evicted; memory grows with the number of distinct
// callers seen over the process lifetime.
type RateLimiter struct {
	mu     sync.Mutex
	window map[string][]time.Time

	cfg RateLimiterConfig
	now func() time.Time
}

// NewRateLimiter creates a limiter. Zero config fields fall back to
// DefaultRateLimiterConfig values.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &RateLimiter{
		window: make(map[string][]time.Time),
		cfg:    cfg,
		now:    time.Now,
	}
}

// Check records an attempt for key and reports whether it is within quota.
// A false return means the caller should be answered with a rate-limited
// result; the attempt is not recorded against the quota.
func (rl *RateLimiter) Check(key string) bool {
	now := rl.now()
	cutoff := now.Add(-rl.cfg.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.window[key]
	kept := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.cfg.MaxRequests {
		rl.window[key] = kept
		return false
	}

	rl.window[key] = append(kept, now)
	return true
}

// ActiveKeys returns the number of keys currently tracked. Useful for
// monitoring and testing.
func (rl *RateLimiter) ActiveKeys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.window)
}
