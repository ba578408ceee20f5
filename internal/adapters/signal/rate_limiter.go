package signal

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// JoinRateLimiter bounds join attempts per client token.
// A nil limiter allows everything.
type JoinRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
}

func NewJoinRateLimiter(perMinute int) *JoinRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &JoinRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (rl *JoinRateLimiter) Allow(key string) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	e, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= 256 {
			rl.evictIdle(now)
		}
		e = &limiterEntry{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (rl *JoinRateLimiter) evictIdle(now time.Time) {
	for k, e := range rl.limiters {
		if now.Sub(e.lastSeen) > limiterIdle {
			delete(rl.limiters, k)
		}
	}
}

// newMessageLimiter is the per-connection message bucket. Zero rate means unlimited.
func newMessageLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = int(perSecond) + 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
