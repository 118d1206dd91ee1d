package limiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// OpLimiter throttles filesystem mutations to a maximum rate
type OpLimiter struct {
	limiter *rate.Limiter
}

// NewOpLimiter creates a limiter allowing opsPerSecond mutations.
// A rate <= 0 disables throttling.
func NewOpLimiter(opsPerSecond float64) *OpLimiter {
	if opsPerSecond <= 0 {
		return &OpLimiter{}
	}
	burst := int(math.Ceil(opsPerSecond))
	return &OpLimiter{limiter: rate.NewLimiter(rate.Limit(opsPerSecond), burst)}
}

// Wait blocks until one more mutation is allowed or ctx is done
func (l *OpLimiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Enabled reports whether a rate is enforced
func (l *OpLimiter) Enabled() bool {
	return l != nil && l.limiter != nil
}
