/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides a per-key token-bucket rate limiter for admission control.
//
// Each key (user ID, client address, route) gets its own continuously-refilling bucket,
// so one noisy caller can be throttled without penalizing others sharing the limiter.
// Bucket capacity (Config.MaxTokens) bounds bursts, refill rate (Config.RefillRate)
// bounds the sustained request rate. Stale buckets are evicted by a background sweep
// owned by the limiter, so memory stays proportional to the set of active keys.
//
// The limiter keeps all state in process memory. A deployment running several instances
// gets independent, non-shared limits; no cross-instance coordination is provided.
package ratelimit
