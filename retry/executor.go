/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"

	"github.com/ianmin2/go-resilience/log"
)

// Func is a fallible operation producing a value of type T that may be retried.
type Func[T any] func(ctx context.Context) (T, error)

// Result describes the outcome of an Execute call.
// It is always returned by value, the executor never panics on the caller's behalf;
// converting a failed Result into an error propagation is the caller's choice.
type Result[T any] struct {
	// Data is the value produced by the last attempt. Meaningful only when Err is nil.
	Data T

	// Err is the failure of the last attempt, or nil on success.
	Err error

	// Attempts is the number of attempts done, at most MaxRetries+1.
	// It is 0 when the operation was never called because the config itself was rejected.
	Attempts int

	// TotalTime is the wall-clock time elapsed across all attempts and delays.
	TotalTime time.Duration
}

// Ok reports whether the operation eventually succeeded.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Unwrap returns the produced value and the final error.
func (r Result[T]) Unwrap() (T, error) {
	return r.Data, r.Err
}

// ExecuteOpts represents an options for Execute.
type ExecuteOpts struct {
	// Logger is used for logging retry attempts. No logging is done if it's nil.
	Logger log.FieldLogger

	// Policy overrides the backoff strategy derived from the Config delays.
	Policy Policy
}

// Execute runs fn, retrying transient failures according to cfg.
// The context is respected while waiting between attempts: when it's canceled,
// the executor stops and reports both the cancellation and the last failure.
func Execute[T any](ctx context.Context, cfg Config, fn Func[T]) Result[T] {
	return ExecuteWithOpts(ctx, cfg, fn, ExecuteOpts{})
}

// ExecuteWithOpts is a version of Execute with an ability to specify additional options.
func ExecuteWithOpts[T any](ctx context.Context, cfg Config, fn Func[T], opts ExecuteOpts) Result[T] {
	start := time.Now()

	if err := cfg.validate(); err != nil {
		return Result[T]{Err: err, Attempts: 0, TotalTime: time.Since(start)}
	}

	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultIsRetryable
	}
	policy := opts.Policy
	if policy == nil {
		policy = NewExponentialJitterPolicy(cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	} else {
		logger = logger.With(log.String("retry_id", xid.New().String()))
	}

	bf := policy.NewBackOff()

	for attempt := 0; ; attempt++ {
		data, err := fn(ctx)
		if err == nil {
			return Result[T]{Data: data, Attempts: attempt + 1, TotalTime: time.Since(start)}
		}

		if !isRetryable(err) {
			logger.Debug("giving up on non-retryable failure",
				log.Int("attempts", attempt+1), log.Error(err))
			return Result[T]{Err: err, Attempts: attempt + 1, TotalTime: time.Since(start)}
		}
		if attempt >= cfg.MaxRetries {
			logger.Warn("retries exhausted",
				log.Int("attempts", attempt+1), log.Error(err))
			return Result[T]{Err: err, Attempts: attempt + 1, TotalTime: time.Since(start)}
		}

		delay := bf.NextBackOff()
		if delay == backoff.Stop {
			return Result[T]{Err: err, Attempts: attempt + 1, TotalTime: time.Since(start)}
		}

		logger.Info("retrying after transient failure",
			log.Int("attempt", attempt+1),
			log.Duration("delay", delay),
			log.String("class", ClassOf(err).String()),
			log.Error(err))

		select {
		case <-ctx.Done():
			return Result[T]{
				Err:       errors.Join(err, ctx.Err()),
				Attempts:  attempt + 1,
				TotalTime: time.Since(start),
			}
		case <-time.After(delay):
		}
	}
}

// Do is a convenience wrapper around Execute for operations that produce no value.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) Result[struct{}] {
	return Execute(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}
