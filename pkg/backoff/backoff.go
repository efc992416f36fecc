package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy calculates the delay before a retry attempt.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// NextInterval returns the delay for the given attempt number.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// Exponential implements exponential backoff with jitter.
// Jitter spreads retries out so that many jobs failing against the same
// platform at once do not come back in lockstep.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// NextInterval returns min(Initial * Multiplier^(attempt-1) * (1 ± Jitter), Max).
func (e Exponential) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.Initial
	if initial == 0 {
		initial = 30 * time.Second
	}

	max := e.Max
	if max == 0 {
		max = 30 * time.Minute
	}

	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))

	// Zero jitter stays deterministic, which the tests rely on.
	if e.Jitter > 0 {
		factor := (rand.Float64()*2 - 1) * e.Jitter
		interval = interval * (1 + factor)
	}

	if interval > float64(max) {
		interval = float64(max)
	}

	return time.Duration(interval)
}

// Linear implements linearly increasing backoff without jitter.
type Linear struct {
	Interval time.Duration
	Max      time.Duration
}

// NextInterval returns min(Interval * attempt, Max).
func (l Linear) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := l.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	max := l.Max
	if max == 0 {
		max = 30 * time.Minute
	}

	delay := interval * time.Duration(attempt)
	if delay > max {
		delay = max
	}

	return delay
}

// Fixed implements a constant delay between retries.
type Fixed struct {
	Interval time.Duration
}

// NextInterval always returns the same interval regardless of attempt number.
func (f Fixed) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// Default returns the backoff used for publish retries when nothing is configured:
// doubling delays starting at 30s, capped at 30m, with 20% jitter.
func Default() Strategy {
	return Exponential{
		Initial:    30 * time.Second,
		Max:        30 * time.Minute,
		Multiplier: 2,
		Jitter:     0.2,
	}
}
