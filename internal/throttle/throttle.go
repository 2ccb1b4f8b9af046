// Package throttle spaces out calls to third-party APIs so a run stays under
// their rate limits.
package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between successive calls
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a Limiter that allows one call per interval. A non-positive
// interval disables throttling.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// None returns a Limiter that never waits
func None() *Limiter {
	return New(0)
}

// Wait blocks until the next call is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
