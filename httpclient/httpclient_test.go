/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWithOpts(t *testing.T) {
	t.Run("transport chain retries and decorates requests", func(t *testing.T) {
		var mu sync.Mutex
		var userAgents, requestIDs []string
		reqCount := 0
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			mu.Lock()
			reqCount++
			cnt := reqCount
			userAgents = append(userAgents, r.Header.Get("User-Agent"))
			requestIDs = append(requestIDs, r.Header.Get("X-Request-ID"))
			mu.Unlock()
			if cnt == 1 {
				rw.WriteHeader(http.StatusBadGateway)
				return
			}
			rw.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cfg := &Config{
			Retries: RetriesConfig{Enabled: true, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond},
			Timeout: 10 * time.Second,
		}
		client, err := NewWithOpts(cfg, Opts{UserAgent: "pr-review-bot/1.0"})
		require.NoError(t, err)

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Equal(t, 2, reqCount)
		require.Equal(t, []string{"pr-review-bot/1.0", "pr-review-bot/1.0"}, userAgents)
		require.NotEmpty(t, requestIDs[0])
		// The same request ID must be sent on the retry attempt.
		require.Equal(t, requestIDs[0], requestIDs[1])
	})

	t.Run("rate limiting is applied when enabled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rw.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cfg := &Config{
			RateLimits: RateLimitConfig{Enabled: true, Limit: 50, WaitTimeout: 5 * time.Second},
			Timeout:    10 * time.Second,
		}
		client, err := New(cfg)
		require.NoError(t, err)

		start := time.Now()
		for i := 0; i < 3; i++ {
			resp, respErr := client.Get(srv.URL)
			require.NoError(t, respErr)
			_ = resp.Body.Close()
		}
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("invalid rate limit config", func(t *testing.T) {
		cfg := &Config{RateLimits: RateLimitConfig{Enabled: true, Limit: -1}}
		_, err := New(cfg)
		require.Error(t, err)
		require.Panics(t, func() { Must(cfg) })
	})
}

func TestUserAgentRoundTripper(t *testing.T) {
	var receivedUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewUserAgentRoundTripper(http.DefaultTransport, "pr-review-bot/1.0")}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "pr-review-bot/1.0", receivedUserAgent)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom-agent")
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "custom-agent", receivedUserAgent)
}

func TestRequestIDRoundTripper(t *testing.T) {
	var receivedRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		receivedRequestID = r.Header.Get("X-Request-ID")
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewRequestIDRoundTripper(http.DefaultTransport)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.NotEmpty(t, receivedRequestID)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "my-id")
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "my-id", receivedRequestID)
}
