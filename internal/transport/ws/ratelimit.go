package ws

import "time"

// rateLimiter is a sliding-window counter for one connection. It is only
// touched by that connection's read loop.
type rateLimiter struct {
	limit    int
	interval time.Duration
	history  []time.Time
}

func newRateLimiter(limit int, interval time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:    limit,
		interval: interval,
		history:  make([]time.Time, 0, limit),
	}
}

func (rl *rateLimiter) Allow(now time.Time) bool {
	windowStart := now.Add(-rl.interval)

	// убираем попытки вне окна
	fresh := rl.history[:0]
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	rl.history = fresh

	if len(rl.history) >= rl.limit {
		return false
	}
	rl.history = append(rl.history, now)
	return true
}
