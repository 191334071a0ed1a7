package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPerMinute matches the scraping and embedding quotas (10 RPM).
const DefaultPerMinute = 10

// Limiter is a token bucket with burst 1: the first call passes immediately,
// later calls are spaced by the configured interval. Throttled halves the rate,
// never going below a quarter of the configured one.
type Limiter struct {
	lim   *rate.Limiter
	floor rate.Limit
}

// New returns a limiter allowing perMinute calls per minute.
// perMinute <= 0 disables limiting.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{lim: rate.NewLimiter(rate.Inf, 1), floor: rate.Inf}
	}
	every := rate.Every(time.Minute / time.Duration(perMinute))
	return &Limiter{lim: rate.NewLimiter(every, 1), floor: every / 4}
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Throttled slows the limiter down after the upstream reported throttling.
func (l *Limiter) Throttled() {
	next := l.lim.Limit() / 2
	if next < l.floor {
		next = l.floor
	}
	l.lim.SetLimit(next)
}

// Interval returns the current spacing between calls.
func (l *Limiter) Interval() time.Duration {
	limit := l.lim.Limit()
	if limit == rate.Inf || limit == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
