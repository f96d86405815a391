/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import "time"

// Presets below are plain configuration values tuned per external dependency.
// They only parameterize the executor, construct them once at process start
// and pass them explicitly to callers.

// SlackAPIConfig returns a patient, high-retry profile for the Slack Web API,
// which throttles aggressively and expects clients to back off generously.
func SlackAPIConfig() Config {
	return Config{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

// GitHubAPIConfig returns a moderate profile for the GitHub REST API.
func GitHubAPIConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Jitter:     true,
	}
}

// InternalConfig returns a fast, low-retry profile for latency-sensitive internal calls.
func InternalConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Jitter:     true,
	}
}

// DatabaseConfig returns a near-immediate, no-jitter profile for transient storage
// contention (serialization failures, deadlock victims).
func DatabaseConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		Jitter:     false,
	}
}
