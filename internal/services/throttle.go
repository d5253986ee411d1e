package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinRequestInterval is the spacing kept between TCGdex requests
const DefaultMinRequestInterval = 100 * time.Millisecond

// Throttle spaces outbound requests at least minInterval apart. It never
// reorders callers; it only delays them.
type Throttle struct {
	limiter *rate.Limiter
}

func NewThrottle(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next request may start or ctx is done
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
