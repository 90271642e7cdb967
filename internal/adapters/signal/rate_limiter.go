package signal

import (
	"sync"
	"time"
)

// JoinRateLimiter caps join attempts per remote address within a sliding
// window.
type JoinRateLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
	swept    time.Time
}

// NewJoinRateLimiter returns nil when limit is not positive; a nil limiter
// allows everything.
func NewJoinRateLimiter(limit int, interval time.Duration) *JoinRateLimiter {
	if limit <= 0 || interval <= 0 {
		return nil
	}
	return &JoinRateLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *JoinRateLimiter) Allow(key string) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.swept) >= rl.interval {
		rl.sweep(windowStart)
		rl.swept = now
	}

	attempts := rl.history[key]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[key] = fresh
		return false
	}
	rl.history[key] = append(fresh, now)
	return true
}

// sweep drops addresses with no attempt inside the window.
func (rl *JoinRateLimiter) sweep(windowStart time.Time) {
	for key, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, key)
		}
	}
}
