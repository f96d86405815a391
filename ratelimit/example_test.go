/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit_test

import (
	"fmt"

	"github.com/ianmin2/go-resilience/ratelimit"
)

func Example() {
	// Allow bursts of up to 3 calls per user, 1 call/sec sustained.
	limiter, err := ratelimit.NewTokenBucketLimiter(ratelimit.Config{MaxTokens: 3, RefillRate: 1})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer limiter.Close()

	for i := 0; i < 4; i++ {
		res := limiter.Check("user-42")
		if res.Allowed {
			fmt.Printf("allowed, %d tokens left\n", res.Remaining)
			continue
		}
		fmt.Printf("denied, retry after %s\n", res.RetryAfter)
	}

	// Output:
	// allowed, 2 tokens left
	// allowed, 1 tokens left
	// allowed, 0 tokens left
	// denied, retry after 1s
}
