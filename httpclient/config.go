/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"errors"
	"time"

	"github.com/ianmin2/go-resilience/config"
	"github.com/ianmin2/go-resilience/retry"
)

const (
	cfgKeyRetriesEnabled        = "retries.enabled"
	cfgKeyRetriesMaxAttempts    = "retries.maxAttempts"
	cfgKeyRetriesBaseDelay      = "retries.baseDelay"
	cfgKeyRetriesMaxDelay       = "retries.maxDelay"
	cfgKeyRetriesJitter         = "retries.jitter"
	cfgKeyRateLimitsEnabled     = "rateLimits.enabled"
	cfgKeyRateLimitsLimit       = "rateLimits.limit"
	cfgKeyRateLimitsBurst       = "rateLimits.burst"
	cfgKeyRateLimitsWaitTimeout = "rateLimits.waitTimeout"
	cfgKeyTimeout               = "timeout"
)

// DefaultClientWaitTimeout is a default timeout for the whole request/response round trip.
const DefaultClientWaitTimeout = time.Minute

// RetriesConfig represents configuration options for HTTP client retries policy.
type RetriesConfig struct {
	// Enabled is a flag that enables retries.
	Enabled bool `mapstructure:"enabled"`

	// MaxAttempts is a maximum number of retry attempts.
	MaxAttempts int `mapstructure:"maxAttempts"`

	// BaseDelay is a delay before the first retry attempt, doubled on each following one.
	BaseDelay time.Duration `mapstructure:"baseDelay"`

	// MaxDelay caps the delay computed from BaseDelay.
	MaxDelay time.Duration `mapstructure:"maxDelay"`

	// Jitter adds a random fraction to every delay to avoid retry storms.
	Jitter bool `mapstructure:"jitter"`
}

// GetPolicy returns a retry.Policy built from the configuration parameters.
func (c *RetriesConfig) GetPolicy() retry.Policy {
	baseDelay := c.BaseDelay
	if baseDelay == 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	maxDelay := c.MaxDelay
	if maxDelay == 0 {
		maxDelay = DefaultRetryMaxDelay
	}
	return retry.NewExponentialJitterPolicy(baseDelay, maxDelay, c.Jitter)
}

// TransportOpts returns the options for RetryableRoundTripper.
func (c *RetriesConfig) TransportOpts() RetryableRoundTripperOpts {
	return RetryableRoundTripperOpts{MaxRetryAttempts: c.MaxAttempts, BackoffPolicy: c.GetPolicy()}
}

// Set is part of config interface implementation.
func (c *RetriesConfig) Set(dp config.DataProvider) error {
	enabled, err := dp.GetBool(cfgKeyRetriesEnabled)
	if err != nil {
		return err
	}
	c.Enabled = enabled

	maxAttempts, err := dp.GetInt(cfgKeyRetriesMaxAttempts)
	if err != nil {
		return err
	}
	if maxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyRetriesMaxAttempts, errors.New("cannot be negative"))
	}
	c.MaxAttempts = maxAttempts

	if c.BaseDelay, err = dp.GetDuration(cfgKeyRetriesBaseDelay); err != nil {
		return err
	}
	if c.MaxDelay, err = dp.GetDuration(cfgKeyRetriesMaxDelay); err != nil {
		return err
	}
	if c.Jitter, err = dp.GetBool(cfgKeyRetriesJitter); err != nil {
		return err
	}
	return nil
}

// SetProviderDefaults is part of config interface implementation.
func (c *RetriesConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRetriesJitter, true)
}

// RateLimitConfig represents configuration options for HTTP client rate limits.
type RateLimitConfig struct {
	// Enabled is a flag that enables rate limiting.
	Enabled bool `mapstructure:"enabled"`

	// Limit is a maximum number of requests per second.
	Limit int `mapstructure:"limit"`

	// Burst allows short bursts above Limit.
	Burst int `mapstructure:"burst"`

	// WaitTimeout is a maximum time to wait for a free slot.
	WaitTimeout time.Duration `mapstructure:"waitTimeout"`
}

// TransportOpts returns the options for RateLimitingRoundTripper.
func (c *RateLimitConfig) TransportOpts() RateLimitingRoundTripperOpts {
	return RateLimitingRoundTripperOpts{Burst: c.Burst, WaitTimeout: c.WaitTimeout}
}

// Set is part of config interface implementation.
func (c *RateLimitConfig) Set(dp config.DataProvider) error {
	enabled, err := dp.GetBool(cfgKeyRateLimitsEnabled)
	if err != nil {
		return err
	}
	c.Enabled = enabled

	limit, err := dp.GetInt(cfgKeyRateLimitsLimit)
	if err != nil {
		return err
	}
	if c.Enabled && limit <= 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsLimit, errors.New("must be positive"))
	}
	c.Limit = limit

	burst, err := dp.GetInt(cfgKeyRateLimitsBurst)
	if err != nil {
		return err
	}
	if burst < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsBurst, errors.New("cannot be negative"))
	}
	c.Burst = burst

	if c.WaitTimeout, err = dp.GetDuration(cfgKeyRateLimitsWaitTimeout); err != nil {
		return err
	}
	return nil
}

// SetProviderDefaults is part of config interface implementation.
func (c *RateLimitConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRateLimitsWaitTimeout, DefaultRateLimitingWaitTimeout.String())
}

// Config represents a set of configuration parameters for an outbound HTTP client.
type Config struct {
	// Retries is a configuration for HTTP client retries policy.
	Retries RetriesConfig `mapstructure:"retries"`

	// RateLimits is a configuration for HTTP client rate limits.
	RateLimits RateLimitConfig `mapstructure:"rateLimits"`

	// Timeout is the maximum time to wait for a request to be made.
	Timeout time.Duration `mapstructure:"timeout"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config with a key prefix
// which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	timeout, err := dp.GetDuration(cfgKeyTimeout)
	if err != nil {
		return err
	}
	c.Timeout = timeout

	if err = c.Retries.Set(dp); err != nil {
		return err
	}
	return c.RateLimits.Set(dp)
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultClientWaitTimeout.String())
	c.Retries.SetProviderDefaults(dp)
	c.RateLimits.SetProviderDefaults(dp)
}
