package crawler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/imagefinder/internal/config"
)

// Limiter paces page fetches. Wait blocks until the caller may fetch, or
// returns the context's error if ctx is done first.
type Limiter interface {
	Wait(ctx context.Context) error
}

// DelayLimiter sleeps a fixed interval before every fetch.
// Each caller waits independently, so the delay only occupies the calling
// worker's slot and N workers may issue up to N requests per interval.
type DelayLimiter struct {
	delay time.Duration
}

// NewDelayLimiter creates a DelayLimiter. A zero or negative delay disables waiting.
func NewDelayLimiter(delay time.Duration) *DelayLimiter {
	return &DelayLimiter{delay: delay}
}

// Wait sleeps for the configured delay.
func (l *DelayLimiter) Wait(ctx context.Context) error {
	if l.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(l.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SharedLimiter is a token bucket shared by all workers of a crawl:
// one token per interval with a burst of one.
type SharedLimiter struct {
	limiter *rate.Limiter
}

// NewSharedLimiter creates a SharedLimiter. A zero or negative interval disables waiting.
func NewSharedLimiter(interval time.Duration) *SharedLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &SharedLimiter{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until a token is available.
func (l *SharedLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// NewLimiter returns the Limiter for a rate policy name
// (config.RatePolicyDelay or config.RatePolicyShared).
// An empty policy selects the default.
func NewLimiter(policy string, interval time.Duration) (Limiter, error) {
	switch policy {
	case config.RatePolicyDelay, "":
		return NewDelayLimiter(interval), nil
	case config.RatePolicyShared:
		return NewSharedLimiter(interval), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRatePolicy, policy)
	}
}
