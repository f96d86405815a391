/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/ianmin2/go-resilience/httpclient"
)

func ExampleNew() {
	var reqCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&reqCount, 1) == 1 {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := httpclient.New(&httpclient.Config{
		Retries: httpclient.RetriesConfig{Enabled: true, MaxAttempts: 3, BaseDelay: time.Millisecond},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	resp, err := client.Get(srv.URL)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	fmt.Printf("status: %d, requests made: %d\n", resp.StatusCode, atomic.LoadInt32(&reqCount))

	// Output:
	// status: 200, requests made: 2
}
