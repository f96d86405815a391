/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package retry provides an executor for fallible operations that retries transient
// failures with bounded, exponentially growing, optionally jittered delays.
//
// Failures are classified as retryable or terminal either by an explicit Class
// attached at the failure origin (see WithClass) or, as a fallback, by a message
// heuristic. Backoff strategies are expressed as Policy values producing
// backoff.BackOff instances, so custom strategies from the cenkalti/backoff
// ecosystem can be plugged in directly.
package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable defines a func that can tell if error is retryable as opposed to persistent.
type IsRetryable func(error) bool

// Policy defines backoff strategy.
type Policy interface {
	NewBackOff() backoff.BackOff
}

// The PolicyFunc type is an adapter to allow the use of ordinary functions as retry.Policy.
type PolicyFunc func() backoff.BackOff

// NewBackOff implements retry.Policy.
func (f PolicyFunc) NewBackOff() backoff.BackOff {
	return f()
}

// ExponentialBackoffPolicy means repeat up to max times with exponentially growing delays (1.5 multiplier).
type ExponentialBackoffPolicy struct {
	initialInterval time.Duration
	maxAttempts     int
}

// NewExponentialBackoffPolicy returns an exponential backoff policy with given initial interval and max retry attempt count.
func NewExponentialBackoffPolicy(initialInterval time.Duration, maxRetryAttempts int) ExponentialBackoffPolicy {
	return ExponentialBackoffPolicy{initialInterval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ExponentialBackoffPolicy) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	var bf backoff.BackOff = eb
	if p.maxAttempts > 0 {
		bf = backoff.WithMaxRetries(eb, uint64(p.maxAttempts))
	}
	bf.Reset()
	return bf
}

// ConstantBackoffPolicy means repeat up to max times with constant interval delays.
type ConstantBackoffPolicy struct {
	interval    time.Duration
	maxAttempts int
}

// NewConstantBackoffPolicy returns a constant backoff policy with given interval and max retry attempt count.
func NewConstantBackoffPolicy(interval time.Duration, maxRetryAttempts int) ConstantBackoffPolicy {
	return ConstantBackoffPolicy{interval, maxRetryAttempts}
}

// NewBackOff implements retry.Policy.
func (p ConstantBackoffPolicy) NewBackOff() backoff.BackOff {
	var bf backoff.BackOff = backoff.NewConstantBackOff(p.interval)
	if p.maxAttempts > 0 {
		bf = backoff.WithMaxRetries(bf, uint64(p.maxAttempts))
	}
	bf.Reset()
	return bf
}

// ExponentialJitterPolicy doubles the delay on each attempt starting from the base delay,
// caps it at the max delay and optionally adds a uniformly random amount
// in [0, delay/2]. With jitter the worst-case delay is 1.5 * max delay.
type ExponentialJitterPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    bool
}

// NewExponentialJitterPolicy returns a policy with delays growing as baseDelay * 2^attempt
// capped at maxDelay, with optional jitter.
func NewExponentialJitterPolicy(baseDelay, maxDelay time.Duration, jitter bool) ExponentialJitterPolicy {
	return ExponentialJitterPolicy{baseDelay: baseDelay, maxDelay: maxDelay, jitter: jitter}
}

// NewBackOff implements retry.Policy.
func (p ExponentialJitterPolicy) NewBackOff() backoff.BackOff {
	return &exponentialJitterBackOff{
		baseDelay: p.baseDelay,
		maxDelay:  p.maxDelay,
		jitter:    p.jitter,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // Jitter doesn't need a CSPRNG.
	}
}

type exponentialJitterBackOff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    bool

	mu      sync.Mutex
	attempt int
	rnd     *rand.Rand
}

func (b *exponentialJitterBackOff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.maxDelay
	// Left shift overflows for attempts past 62, guard via the doubling bound.
	if shifted := b.baseDelay << uint(b.attempt); shifted > 0 && shifted < b.maxDelay {
		delay = shifted
	}
	b.attempt++

	if b.jitter {
		delay += time.Duration(b.rnd.Int63n(int64(delay)/2 + 1))
	}
	return delay.Truncate(time.Millisecond)
}

func (b *exponentialJitterBackOff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
