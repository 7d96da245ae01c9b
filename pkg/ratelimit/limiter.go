package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces browser page loads
type Limiter interface {
	// Wait blocks until the next page load may start or ctx is done
	Wait(ctx context.Context) error
}

// Pacer spaces page loads at least one interval apart, with no bursts
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing one page load per interval.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next slot
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Unlimited returns a limiter that never waits
func Unlimited() Limiter {
	return NewPacer(0)
}
