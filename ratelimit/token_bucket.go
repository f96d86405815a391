/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/ianmin2/go-resilience/log"
)

// Result describes the outcome of a single Check call.
type Result struct {
	// Allowed reports whether the action was admitted.
	Allowed bool

	// Remaining is the whole number of tokens left in the bucket after the call.
	Remaining int

	// Reset is the time until the bucket is full again.
	Reset time.Duration

	// RetryAfter is the time until at least one token is available.
	// It is non-zero only when Allowed is false.
	RetryAfter time.Duration
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucketLimiter is a per-key token-bucket rate limiter.
// A bucket is created full on the first Check for a key and refills continuously
// at Config.RefillRate tokens per second up to Config.MaxTokens.
// All methods are safe for concurrent use.
type TokenBucketLimiter struct {
	cfg     Config
	logger  log.FieldLogger
	metrics MetricsCollector

	mu      sync.Mutex
	buckets map[string]*bucket

	done      chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once

	timeNow func() time.Time
}

// Opts represents an options for TokenBucketLimiter.
type Opts struct {
	// Logger is used for logging background sweep activity. No logging is done if it's nil.
	Logger log.FieldLogger

	// MetricsCollector is a collector of the limiter metrics. Disabled if nil.
	MetricsCollector MetricsCollector
}

// NewTokenBucketLimiter creates a new TokenBucketLimiter and starts its background sweep.
// Close must be called when the limiter is no longer needed, otherwise the sweep goroutine leaks.
func NewTokenBucketLimiter(cfg Config) (*TokenBucketLimiter, error) {
	return NewTokenBucketLimiterWithOpts(cfg, Opts{})
}

// NewTokenBucketLimiterWithOpts is a version of NewTokenBucketLimiter
// with an ability to specify additional options.
func NewTokenBucketLimiterWithOpts(cfg Config, opts Opts) (*TokenBucketLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CleanupWindow == 0 {
		cfg.CleanupWindow = DefaultCleanupWindow
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	l := &TokenBucketLimiter{
		cfg:       cfg,
		logger:    opts.Logger,
		metrics:   opts.MetricsCollector,
		buckets:   make(map[string]*bucket),
		done:      make(chan struct{}),
		sweepDone: make(chan struct{}),
		timeNow:   time.Now,
	}
	go l.runSweep()
	return l, nil
}

// Check reports whether an action for the given key is admitted right now,
// consuming one token if it is. It never fails, it only denies.
func (l *TokenBucketLimiter) Check(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.MaxTokens, lastRefill: now}
		l.buckets[key] = b
		l.metrics.SetKeysAmount(len(l.buckets))
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(l.cfg.MaxTokens, b.tokens+elapsed*l.cfg.RefillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		l.metrics.IncAllowed()
		return Result{
			Allowed:   true,
			Remaining: int(math.Floor(b.tokens)),
			Reset:     ceilSeconds((l.cfg.MaxTokens - b.tokens) / l.cfg.RefillRate),
		}
	}

	l.metrics.IncDenied()
	return Result{
		Allowed:    false,
		Remaining:  0,
		Reset:      ceilSeconds(l.cfg.MaxTokens / l.cfg.RefillRate),
		RetryAfter: ceilSeconds((1 - b.tokens) / l.cfg.RefillRate),
	}
}

// Config returns a copy of the limiter configuration.
func (l *TokenBucketLimiter) Config() Config {
	return l.cfg
}

// Len returns the current number of tracked keys.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the background sweep and waits until it's finished.
// It's safe to call Close multiple times, only the first call has effect.
func (l *TokenBucketLimiter) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		<-l.sweepDone
	})
}

func (l *TokenBucketLimiter) runSweep() {
	defer close(l.sweepDone)
	ticker := time.NewTicker(l.cfg.CleanupWindow)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes buckets untouched for more than twice the cleanup window.
// An active key is never evicted since every Check advances its lastRefill.
func (l *TokenBucketLimiter) sweep() {
	staleAfter := 2 * l.cfg.CleanupWindow

	l.mu.Lock()
	now := l.timeNow()
	evicted := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > staleAfter {
			delete(l.buckets, key)
			evicted++
		}
	}
	left := len(l.buckets)
	l.mu.Unlock()

	if evicted > 0 {
		l.metrics.AddEvictions(evicted)
		l.metrics.SetKeysAmount(left)
		l.logger.Debug("evicted stale rate limiter buckets",
			log.Int("evicted", evicted), log.Int("left", left))
	}
}

// ceilSeconds converts a duration in seconds to time.Duration,
// rounding up to a whole millisecond.
func ceilSeconds(seconds float64) time.Duration {
	return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
}
