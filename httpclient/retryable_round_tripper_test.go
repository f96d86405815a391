/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ianmin2/go-resilience/retry"
)

func fastBackoffPolicy() retry.Policy {
	return retry.NewConstantBackoffPolicy(time.Millisecond, 0)
}

func TestRetryableRoundTripper_RoundTrip(t *testing.T) {
	t.Run("retries server errors until success", func(t *testing.T) {
		var mu sync.Mutex
		var receivedAttemptHeaders []string
		reqCount := 0
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			mu.Lock()
			reqCount++
			cnt := reqCount
			receivedAttemptHeaders = append(receivedAttemptHeaders, r.Header.Get(RetryAttemptNumberHeader))
			mu.Unlock()
			if cnt <= 2 {
				rw.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			rw.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			BackoffPolicy: fastBackoffPolicy(),
		})
		require.NoError(t, err)
		client := &http.Client{Transport: rt}

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, []string{"", "1", "2"}, receivedAttemptHeaders)
	})

	t.Run("gives up after max retry attempts", func(t *testing.T) {
		var reqCount int
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			mu.Lock()
			reqCount++
			mu.Unlock()
			rw.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			MaxRetryAttempts: 2,
			BackoffPolicy:    fastBackoffPolicy(),
		})
		require.NoError(t, err)
		client := &http.Client{Transport: rt}

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.Equal(t, 3, reqCount)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var reqCount int
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			reqCount++
			rw.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			BackoffPolicy: fastBackoffPolicy(),
		})
		require.NoError(t, err)
		client := &http.Client{Transport: rt}

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, 1, reqCount)
	})

	t.Run("request body is resent on each attempt", func(t *testing.T) {
		var mu sync.Mutex
		var receivedBodies []string
		reqCount := 0
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			reqCount++
			cnt := reqCount
			receivedBodies = append(receivedBodies, string(body))
			mu.Unlock()
			if cnt == 1 {
				rw.WriteHeader(http.StatusBadGateway)
				return
			}
			rw.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			BackoffPolicy: fastBackoffPolicy(),
		})
		require.NoError(t, err)
		client := &http.Client{Transport: rt}

		resp, err := client.Post(srv.URL, "application/json", bytes.NewBufferString(`{"pr":42}`))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, []string{`{"pr":42}`, `{"pr":42}`}, receivedBodies)
	})

	t.Run("respects Retry-After response header", func(t *testing.T) {
		const retryAfter = time.Second
		var mu sync.Mutex
		var reqTimes []time.Time
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			mu.Lock()
			reqTimes = append(reqTimes, time.Now())
			cnt := len(reqTimes)
			mu.Unlock()
			if cnt == 1 {
				rw.Header().Set("Retry-After", "1")
				rw.WriteHeader(http.StatusTooManyRequests)
				return
			}
			rw.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			BackoffPolicy: fastBackoffPolicy(),
		})
		require.NoError(t, err)
		client := &http.Client{Transport: rt}

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, reqTimes, 2)
		require.GreaterOrEqual(t, reqTimes[1].Sub(reqTimes[0]), retryAfter)
	})

	t.Run("stops waiting when request context is canceled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		rt, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			BackoffPolicy: retry.NewConstantBackoffPolicy(time.Minute, 0),
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		resp, err := rt.RoundTrip(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("invalid max retry attempts", func(t *testing.T) {
		_, err := NewRetryableRoundTripperWithOpts(http.DefaultTransport, RetryableRoundTripperOpts{
			MaxRetryAttempts: -2,
		})
		require.Error(t, err)
	})
}

type temporaryError struct{}

func (temporaryError) Error() string   { return "temporary failure" }
func (temporaryError) Temporary() bool { return true }

func TestDefaultCheckRetry(t *testing.T) {
	ctx := context.Background()

	needRetry, err := DefaultCheckRetry(ctx, nil, retry.WithClass(fmt.Errorf("boom"), retry.ClassNetwork), 0)
	require.NoError(t, err)
	require.True(t, needRetry)

	needRetry, err = DefaultCheckRetry(ctx, nil, fmt.Errorf("invalid request payload"), 0)
	require.NoError(t, err)
	require.False(t, needRetry)

	needRetry, err = DefaultCheckRetry(ctx, &http.Response{StatusCode: http.StatusTooManyRequests}, nil, 0)
	require.NoError(t, err)
	require.True(t, needRetry)

	needRetry, err = DefaultCheckRetry(ctx, &http.Response{StatusCode: http.StatusBadGateway}, nil, 0)
	require.NoError(t, err)
	require.True(t, needRetry)

	needRetry, err = DefaultCheckRetry(ctx, &http.Response{StatusCode: http.StatusOK}, nil, 0)
	require.NoError(t, err)
	require.False(t, needRetry)

	_, err = DefaultCheckRetry(ctx, nil, nil, 0)
	require.Error(t, err)
}

func TestCheckErrorIsTemporary(t *testing.T) {
	require.True(t, CheckErrorIsTemporary(io.EOF))
	require.True(t, CheckErrorIsTemporary(fmt.Errorf("do request: %w", temporaryError{})))
	require.False(t, CheckErrorIsTemporary(fmt.Errorf("boom")))
}

func TestParseRetryAfterFromResponse(t *testing.T) {
	makeResp := func(retryAfter string) *http.Response {
		resp := &http.Response{Header: http.Header{}}
		if retryAfter != "" {
			resp.Header.Set("Retry-After", retryAfter)
		}
		return resp
	}

	retryAfter, ok := parseRetryAfterFromResponse(makeResp("30"))
	require.True(t, ok)
	require.Equal(t, 30*time.Second, retryAfter)

	_, ok = parseRetryAfterFromResponse(makeResp(""))
	require.False(t, ok)

	_, ok = parseRetryAfterFromResponse(makeResp("-1"))
	require.False(t, ok)

	retryAfter, ok = parseRetryAfterFromResponse(makeResp(time.Now().Add(time.Hour).UTC().Format(time.RFC1123)))
	require.True(t, ok)
	require.Greater(t, retryAfter, 59*time.Minute)
}
