/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/ianmin2/go-resilience/middleware"
	"github.com/ianmin2/go-resilience/ratelimit"
)

func ExampleRateLimitWithOpts() {
	limiter, err := ratelimit.NewTokenBucketLimiter(ratelimit.Config{MaxTokens: 2, RefillRate: 1})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer limiter.Close()

	router := chi.NewRouter()
	router.Use(middleware.RateLimitWithOpts(limiter, "ReviewBot", middleware.RateLimitOpts{
		BypassKeys: []string{"10.0.*"},
	}))
	router.Post("/slack/events", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	for i := 0; i < 3; i++ {
		resp, respErr := http.Post(srv.URL+"/slack/events", "application/json", nil)
		if respErr != nil {
			fmt.Println(respErr)
			return
		}
		_ = resp.Body.Close()
		fmt.Printf("status: %d, remaining: %s\n", resp.StatusCode, resp.Header.Get("X-RateLimit-Remaining"))
	}

	// Output:
	// status: 200, remaining: 1
	// status: 200, remaining: 0
	// status: 429, remaining: 0
}
