/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"fmt"
	"net/http"

	"github.com/rs/xid"

	"github.com/ianmin2/go-resilience/log"
)

// CloneHTTPRequest creates a shallow copy of the request along with a deep copy of the Headers.
func CloneHTTPRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = CloneHTTPHeader(req.Header)
	return r
}

// CloneHTTPHeader creates a deep copy of an http.Header.
func CloneHTTPHeader(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		newValues := make([]string, len(values))
		copy(newValues, values)
		out[key] = newValues
	}
	return out
}

// Opts provides options for NewWithOpts and MustWithOpts functions.
type Opts struct {
	// UserAgent is a user agent string set in all outgoing requests.
	UserAgent string

	// Delegate is the next RoundTripper in the chain.
	Delegate http.RoundTripper

	// Logger is used for logging by the retryable and rate limiting round trippers.
	Logger log.FieldLogger

	// RequestIDProvider is a function that provides a request ID.
	// A new xid is generated per request if not set.
	RequestIDProvider func() string
}

// New builds an *http.Client whose transport chain rate limits and retries
// outgoing requests according to the configuration.
func New(cfg *Config) (*http.Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// Must is a version of New that panics if an error occurs.
func Must(cfg *Config) *http.Client {
	client, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// NewWithOpts builds an *http.Client with the configured transport chain and specified options.
func NewWithOpts(cfg *Config, opts Opts) (*http.Client, error) {
	var err error
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.RateLimits.Enabled {
		rlOpts := cfg.RateLimits.TransportOpts()
		rlOpts.Logger = opts.Logger
		delegate, err = NewRateLimitingRoundTripperWithOpts(delegate, cfg.RateLimits.Limit, rlOpts)
		if err != nil {
			return nil, fmt.Errorf("create rate limiting round tripper: %w", err)
		}
	}

	if opts.UserAgent != "" {
		delegate = NewUserAgentRoundTripper(delegate, opts.UserAgent)
	}

	if cfg.Retries.Enabled {
		retryOpts := cfg.Retries.TransportOpts()
		retryOpts.Logger = opts.Logger
		delegate, err = NewRetryableRoundTripperWithOpts(delegate, retryOpts)
		if err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
	}

	// Outermost so that all retry attempts of one logical request share the same ID.
	delegate = NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{
		RequestIDProvider: opts.RequestIDProvider,
	})

	return &http.Client{Transport: delegate, Timeout: cfg.Timeout}, nil
}

// MustWithOpts is a version of NewWithOpts that panics if an error occurs.
func MustWithOpts(cfg *Config, opts Opts) *http.Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}

// RequestIDRoundTripperOpts represents an options for RequestIDRoundTripper.
type RequestIDRoundTripperOpts struct {
	// RequestIDProvider is a function that provides a request ID.
	// A new xid is generated per request if not set.
	RequestIDProvider func() string
}

// RequestIDRoundTripper sets X-Request-ID header in all outgoing requests if it's not set yet.
type RequestIDRoundTripper struct {
	Delegate          http.RoundTripper
	RequestIDProvider func() string
}

// NewRequestIDRoundTripper creates an HTTP transport with X-Request-ID header support.
func NewRequestIDRoundTripper(delegate http.RoundTripper) http.RoundTripper {
	return NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{})
}

// NewRequestIDRoundTripperWithOpts creates an HTTP transport with X-Request-ID header support
// with specified options.
func NewRequestIDRoundTripperWithOpts(
	delegate http.RoundTripper, opts RequestIDRoundTripperOpts,
) http.RoundTripper {
	provider := opts.RequestIDProvider
	if provider == nil {
		provider = func() string { return xid.New().String() }
	}
	return &RequestIDRoundTripper{Delegate: delegate, RequestIDProvider: provider}
}

// RoundTrip adds X-Request-ID header to the request.
func (rt *RequestIDRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("X-Request-ID") != "" {
		return rt.Delegate.RoundTrip(r)
	}
	r = CloneHTTPRequest(r)
	r.Header.Set("X-Request-ID", rt.RequestIDProvider())
	return rt.Delegate.RoundTrip(r)
}

// UserAgentRoundTripper implements http.RoundTripper interface
// and sets User-Agent HTTP header in all outgoing requests if it's not set yet.
type UserAgentRoundTripper struct {
	Delegate  http.RoundTripper
	UserAgent string
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	return &UserAgentRoundTripper{Delegate: delegate, UserAgent: userAgent}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("User-Agent", rt.UserAgent)
	return rt.Delegate.RoundTrip(req)
}
