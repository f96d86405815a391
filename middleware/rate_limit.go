/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package middleware provides net/http middleware for admitting or rejecting
// inbound requests with a token-bucket rate limiter.
package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/vasayxtx/go-glob"

	"github.com/ianmin2/go-resilience/log"
	"github.com/ianmin2/go-resilience/ratelimit"
	"github.com/ianmin2/go-resilience/restapi"
)

// RateLimitErrCode is an error code that is used in a response body
// if the request is rejected by the middleware that limits the rate of HTTP requests.
const RateLimitErrCode = "tooManyRequests"

// RateLimitLogFieldKey it is the name of the logged field that contains a key for the requests rate limiter.
const RateLimitLogFieldKey = "rate_limit_key"

const userAgentLogFieldKey = "user_agent"

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"

	headerRetryAfter         = "Retry-After"
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitParams contains data that relates to the rate limiting procedure
// and could be used for rejecting or handling an occurred error.
type RateLimitParams struct {
	ErrDomain          string
	ResponseStatusCode int
	Key                string
	Result             ratelimit.Result
}

// RateLimitOnRejectFunc is a function that is called for rejecting HTTP request when the rate limit is exceeded.
type RateLimitOnRejectFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger)

// RateLimitOnErrorFunc is a function that is called when an error occurs while getting the rate limiting key.
type RateLimitOnErrorFunc func(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger)

// RateLimitGetKeyFunc is a function that is called for getting key for rate limiting.
type RateLimitGetKeyFunc func(r *http.Request) (key string, bypass bool, err error)

// RateLimitOpts represents an options for the RateLimit middleware.
type RateLimitOpts struct {
	// GetKey extracts the rate limiting key from the request.
	// If not set, RateLimitGetKeyByClientIP is used.
	GetKey RateLimitGetKeyFunc

	// BypassKeys is a list of glob patterns ("10.0.*", "trusted-bot-?").
	// Requests whose key matches any of them are served without rate limiting.
	BypassKeys []string

	// ResponseStatusCode is a status code for rejected requests. 429 if not set.
	ResponseStatusCode int

	// DryRun makes the middleware only log would-be rejections and serve all requests.
	DryRun bool

	Logger log.FieldLogger

	OnReject         RateLimitOnRejectFunc
	OnRejectInDryRun RateLimitOnRejectFunc
	OnError          RateLimitOnErrorFunc
}

type rateLimitHandler struct {
	next           http.Handler
	limiter        *ratelimit.TokenBucketLimiter
	getKey         RateLimitGetKeyFunc
	errDomain      string
	respStatusCode int
	logger         log.FieldLogger

	onReject RateLimitOnRejectFunc
	onError  RateLimitOnErrorFunc
}

func (h *rateLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	key, bypass, err := h.getKey(r)
	if err != nil {
		params := RateLimitParams{ErrDomain: h.errDomain, ResponseStatusCode: h.respStatusCode, Key: key}
		h.onError(rw, r, params, err, h.next, h.logger)
		return
	}
	if bypass {
		h.next.ServeHTTP(rw, r)
		return
	}

	result := h.limiter.Check(key)
	setRateLimitHeaders(rw.Header(), h.limiter.Config(), result)
	if result.Allowed {
		h.next.ServeHTTP(rw, r)
		return
	}
	params := RateLimitParams{ErrDomain: h.errDomain, ResponseStatusCode: h.respStatusCode, Key: key, Result: result}
	h.onReject(rw, r, params, h.next, h.logger)
}

func setRateLimitHeaders(header http.Header, cfg ratelimit.Config, result ratelimit.Result) {
	header.Set(headerRateLimitLimit, strconv.Itoa(int(cfg.MaxTokens)))
	header.Set(headerRateLimitRemaining, strconv.Itoa(result.Remaining))
	header.Set(headerRateLimitReset, strconv.Itoa(int(math.Ceil(result.Reset.Seconds()))))
}

// RateLimit is a middleware that limits the rate of HTTP requests per client IP
// using the passed token-bucket limiter. The caller owns the limiter and must close it.
func RateLimit(limiter *ratelimit.TokenBucketLimiter, errDomain string) func(next http.Handler) http.Handler {
	return RateLimitWithOpts(limiter, errDomain, RateLimitOpts{})
}

// RateLimitWithOpts is a configurable version of a middleware to limit the rate of HTTP requests.
func RateLimitWithOpts(
	limiter *ratelimit.TokenBucketLimiter, errDomain string, opts RateLimitOpts,
) func(next http.Handler) http.Handler {
	respStatusCode := opts.ResponseStatusCode
	if respStatusCode == 0 {
		respStatusCode = http.StatusTooManyRequests
	}
	getKey := opts.GetKey
	if getKey == nil {
		getKey = RateLimitGetKeyByClientIP
	}
	if len(opts.BypassKeys) != 0 {
		getKey = withBypassKeys(getKey, opts.BypassKeys)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	return func(next http.Handler) http.Handler {
		return &rateLimitHandler{
			next:           next,
			limiter:        limiter,
			getKey:         getKey,
			errDomain:      errDomain,
			respStatusCode: respStatusCode,
			logger:         logger,
			onReject:       makeRateLimitOnRejectFunc(opts),
			onError:        makeRateLimitOnErrorFunc(opts),
		}
	}
}

// RateLimitGetKeyByClientIP extracts the client IP address from the request
// checking X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func RateLimitGetKeyByClientIP(r *http.Request) (key string, bypass bool, err error) {
	if v := r.Header.Get(headerForwardedFor); v != "" {
		if i := strings.IndexByte(v, ','); i != -1 {
			v = v[:i]
		}
		return strings.TrimSpace(v), false, nil
	}
	if v := r.Header.Get(headerRealIP); v != "" {
		return v, false, nil
	}
	host, _, splitErr := net.SplitHostPort(r.RemoteAddr)
	if splitErr != nil {
		return "", false, splitErr
	}
	return host, false, nil
}

func withBypassKeys(getKey RateLimitGetKeyFunc, bypassKeys []string) RateLimitGetKeyFunc {
	compiledKeys := make([]func(s string) bool, 0, len(bypassKeys))
	for _, key := range bypassKeys {
		compiledKeys = append(compiledKeys, glob.Compile(key))
	}
	return func(r *http.Request) (string, bool, error) {
		key, bypass, err := getKey(r)
		if err != nil || bypass {
			return key, bypass, err
		}
		for i := range compiledKeys {
			if compiledKeys[i](key) {
				return key, true, nil
			}
		}
		return key, false, nil
	}
}

// DefaultRateLimitOnReject sends a JSON error response when the rate limit is exceeded.
func DefaultRateLimitOnReject(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger = logger.With(
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	rw.Header().Set(headerRetryAfter, strconv.Itoa(int(math.Ceil(params.Result.RetryAfter.Seconds()))))
	apiErr := restapi.NewError(params.ErrDomain, RateLimitErrCode, "Too many requests.")
	restapi.RespondError(rw, params.ResponseStatusCode, apiErr, logger)
}

// DefaultRateLimitOnError sends a JSON error response when the rate limiting key cannot be determined.
func DefaultRateLimitOnError(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, err error, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Error(err.Error(), log.String(RateLimitLogFieldKey, params.Key))
	}
	restapi.RespondInternalError(rw, params.ErrDomain, logger)
}

// DefaultRateLimitOnRejectInDryRun logs the would-be rejection and serves the request.
func DefaultRateLimitOnRejectInDryRun(
	rw http.ResponseWriter, r *http.Request, params RateLimitParams, next http.Handler, logger log.FieldLogger,
) {
	if logger != nil {
		logger.Warn("too many requests, serving will be continued because of dry run mode",
			log.String(RateLimitLogFieldKey, params.Key),
			log.String(userAgentLogFieldKey, r.UserAgent()),
		)
	}
	next.ServeHTTP(rw, r)
}

func makeRateLimitOnRejectFunc(opts RateLimitOpts) RateLimitOnRejectFunc {
	if opts.DryRun {
		if opts.OnRejectInDryRun != nil {
			return opts.OnRejectInDryRun
		}
		return DefaultRateLimitOnRejectInDryRun
	}
	if opts.OnReject != nil {
		return opts.OnReject
	}
	return DefaultRateLimitOnReject
}

func makeRateLimitOnErrorFunc(opts RateLimitOpts) RateLimitOnErrorFunc {
	if opts.OnError != nil {
		return opts.OnError
	}
	return DefaultRateLimitOnError
}
