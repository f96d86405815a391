/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ianmin2/go-resilience/log"
	"github.com/ianmin2/go-resilience/retry"
)

// Default parameter values for RateLimitingRoundTripper.
const (
	DefaultRateLimitingBurst       = 1
	DefaultRateLimitingWaitTimeout = 15 * time.Second
)

// RateLimitingRoundTripperAdaptation represents a params to adapt rate limiting in accordance with value in response.
// Some APIs (e.g. Slack Tier endpoints) report the allowed rate in a response header;
// when ResponseHeaderName is set, the limiter follows that value reduced by SlackPercent.
type RateLimitingRoundTripperAdaptation struct {
	ResponseHeaderName string
	SlackPercent       int
}

// RateLimitingRoundTripperOpts represents an options for RateLimitingRoundTripper.
type RateLimitingRoundTripperOpts struct {
	// Burst allows short bursts above the sustained rate.
	Burst int

	// WaitTimeout is a maximum time to wait for a free slot.
	WaitTimeout time.Duration

	// Adaptation makes the limiter follow a rate reported in a response header.
	Adaptation RateLimitingRoundTripperAdaptation

	// Logger is used for logging rejected waits and adaptive limit changes.
	Logger log.FieldLogger
}

// RateLimitingRoundTripper wraps an object that implements http.RoundTripper interface
// and throttles outgoing requests, so that bursts of outbound calls
// (review fan-out, comment batches) don't trip the upstream API's own limiter.
type RateLimitingRoundTripper struct {
	Delegate http.RoundTripper
	Logger   log.FieldLogger

	rateLimiter *rate.Limiter

	RateLimit   int
	Burst       int
	WaitTimeout time.Duration
	Adaptation  RateLimitingRoundTripperAdaptation
}

// NewRateLimitingRoundTripper creates a new RateLimitingRoundTripper with specified rate limit.
func NewRateLimitingRoundTripper(delegate http.RoundTripper, rateLimit int) (*RateLimitingRoundTripper, error) {
	return NewRateLimitingRoundTripperWithOpts(delegate, rateLimit, RateLimitingRoundTripperOpts{})
}

// NewRateLimitingRoundTripperWithOpts creates a new RateLimitingRoundTripper with specified rate limit and options.
// For options that are not presented, the default values will be used.
func NewRateLimitingRoundTripperWithOpts(
	delegate http.RoundTripper, rateLimit int, opts RateLimitingRoundTripperOpts,
) (*RateLimitingRoundTripper, error) {
	if rateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}
	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst must be positive")
	}
	if opts.Burst == 0 {
		opts.Burst = DefaultRateLimitingBurst
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultRateLimitingWaitTimeout
	}
	if opts.Adaptation.SlackPercent < 0 || opts.Adaptation.SlackPercent > 100 {
		return nil, fmt.Errorf("slack percent must be in range [0..100]")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &RateLimitingRoundTripper{
		Delegate:    delegate,
		Logger:      opts.Logger,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), opts.Burst),
		RateLimit:   rateLimit,
		Burst:       opts.Burst,
		WaitTimeout: opts.WaitTimeout,
		Adaptation:  opts.Adaptation,
	}, nil
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
// When no slot frees up within WaitTimeout, the returned error carries
// retry.ClassRateLimited and wraps RateLimitingWaitError, so the retry
// executor treats the rejection as transient without any message sniffing.
func (rt *RateLimitingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		defer func() {
			_ = r.Body.Close() // Per RoundTripper contract.
		}()
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()

	if err := rt.rateLimiter.Wait(ctx); err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			rt.Logger.Warn("outgoing request rejected by client-side rate limiting",
				log.Duration("wait_timeout", rt.WaitTimeout),
				log.Int("rate_limit", int(rt.rateLimiter.Limit())),
				log.Error(err))
			return nil, retry.WithClass(&RateLimitingWaitError{Inner: err}, retry.ClassRateLimited)
		}
	}

	resp, err := rt.Delegate.RoundTrip(r)
	if err != nil {
		return resp, err
	}

	if rt.Adaptation.ResponseHeaderName != "" {
		rt.adaptRateLimit(rt.rateLimitFromResponse(resp))
	}

	return resp, nil
}

func (rt *RateLimitingRoundTripper) rateLimitFromResponse(resp *http.Response) int {
	respLimitStr := resp.Header.Get(rt.Adaptation.ResponseHeaderName)
	if respLimitStr == "" {
		return 0
	}

	respLimit, err := strconv.Atoi(respLimitStr)
	if err != nil || respLimit < 0 {
		return 0
	}

	respLimit = (respLimit * (100 - rt.Adaptation.SlackPercent)) / 100
	if respLimit == 0 {
		return 1 // Send 1 request per second instead of stopping at all.
	}
	return respLimit
}

// adaptRateLimit follows the rate reported by the upstream API. The configured
// RateLimit stays the ceiling: a missing header (newRateLimit is 0) or a value
// above the ceiling restores the configured rate.
func (rt *RateLimitingRoundTripper) adaptRateLimit(newRateLimit int) {
	if newRateLimit == 0 || newRateLimit > rt.RateLimit {
		newRateLimit = rt.RateLimit
	}

	if rt.rateLimiter.Limit() == rate.Limit(newRateLimit) {
		return
	}
	rt.Logger.Info("adapting client-side rate limit from response header",
		log.Int("old_limit", int(rt.rateLimiter.Limit())),
		log.Int("new_limit", newRateLimit))
	rt.rateLimiter.SetLimit(rate.Limit(newRateLimit))
}

// RateLimitingWaitError is returned in RoundTrip method of RateLimitingRoundTripper when rate limit is exceeded.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}
