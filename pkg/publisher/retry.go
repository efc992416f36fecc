package publisher

import (
	"time"

	"github.com/amplifyops/publishkit/pkg/backoff"
)

// Decision is the retry policy's verdict for a failed attempt.
type Decision struct {
	Retry         bool
	NextAttemptAt time.Time // set only when Retry is true
}

// RetryPolicy decides whether and when a failed publish attempt is retried.
// It is a pure function of its inputs: the caller passes the clock in, so
// decisions are reproducible in tests.
type RetryPolicy struct {
	strategy backoff.Strategy
}

// NewRetryPolicy creates a policy using the given backoff strategy, falling
// back to the jittered exponential default when strategy is nil.
func NewRetryPolicy(strategy backoff.Strategy) *RetryPolicy {
	if strategy == nil {
		strategy = backoff.Default()
	}
	return &RetryPolicy{strategy: strategy}
}

// Decide returns the verdict for a job that has now made `attempts` attempts
// out of `maxAttempts`, the last of which failed with the given class.
//
//   - Permanent errors are exhausted immediately: retrying cannot change the
//     outcome, regardless of remaining attempts.
//   - Transient and unknown errors are retried while attempts remain, with
//     the delay taken from the backoff strategy so synchronized failures
//     against one platform spread out instead of retrying in lockstep.
func (p *RetryPolicy) Decide(now time.Time, attempts, maxAttempts int, class ErrorClass) Decision {
	if class == ErrorClassPermanent {
		return Decision{Retry: false}
	}

	if attempts >= maxAttempts {
		return Decision{Retry: false}
	}

	delay := p.strategy.NextInterval(attempts)
	return Decision{
		Retry:         true,
		NextAttemptAt: now.Add(delay),
	}
}
