package warpops

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Default retry configuration values
const (
	DEF_MAX_ATTEMPTS   = 3
	DEF_BASE_DELAY     = 200 * time.Millisecond
	DEF_MAX_DELAY      = 5 * time.Second
	DEF_JITTER_FACTOR  = 0.2
	DEF_BACKOFF_FACTOR = 2.0
)

// RetryPolicy controls how transient task failures are re-attempted.
type RetryPolicy struct {
	MaxAttempts   int           // Total attempts including the first (1 = never retry)
	BaseDelay     time.Duration // Delay before the second attempt
	MaxDelay      time.Duration // Cap on any single delay
	JitterFactor  float64       // Random jitter factor (0-1)
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   DEF_MAX_ATTEMPTS,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		JitterFactor:  DEF_JITTER_FACTOR,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// CalculateBackoff computes the delay after the given failed attempt
// (1-based).
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	// Exponential backoff: baseDelay * (backoffFactor ^ (attempt-1))
	delay := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))

	// Apply jitter: delay * (1 + jitterFactor * random(-1, 1))
	if p.JitterFactor > 0 {
		jitter := p.JitterFactor * (2*rand.Float64() - 1)
		delay *= (1 + jitter)
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 {
		delay = float64(p.BaseDelay)
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether a task that failed with kind on its attempts-th
// attempt gets another one.
func (p *RetryPolicy) ShouldRetry(attempts int, kind ErrorKind) bool {
	if !kind.Retryable() {
		return false
	}
	return attempts < p.MaxAttempts
}

// WaitForRetry blocks for the backoff delay of the given attempt, returning
// early with the context error on cancellation.
func (p *RetryPolicy) WaitForRetry(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.CalculateBackoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
