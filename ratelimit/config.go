/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"errors"
	"time"

	"github.com/ianmin2/go-resilience/config"
)

const cfgDefaultKeyPrefix = "rateLimit"

const (
	cfgKeyMaxTokens     = "maxTokens"
	cfgKeyRefillRate    = "refillRate"
	cfgKeyCleanupWindow = "cleanupWindow"
)

// DefaultCleanupWindow is a default interval between background sweeps.
// A bucket untouched for more than twice this window is evicted.
const DefaultCleanupWindow = time.Minute

// Config represents a set of configuration parameters for TokenBucketLimiter.
type Config struct {
	// MaxTokens is the bucket capacity, i.e. the maximum burst size. Must be positive.
	MaxTokens float64 `mapstructure:"maxTokens" yaml:"maxTokens" json:"maxTokens"`

	// RefillRate is the number of tokens added to a bucket per second. Must be positive.
	RefillRate float64 `mapstructure:"refillRate" yaml:"refillRate" json:"refillRate"`

	// CleanupWindow is the interval between background sweeps and the base of the
	// staleness threshold (2 * CleanupWindow). DefaultCleanupWindow is used when zero.
	CleanupWindow time.Duration `mapstructure:"cleanupWindow" yaml:"cleanupWindow" json:"cleanupWindow"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config with a key prefix
// which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults is part of config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyCleanupWindow, DefaultCleanupWindow.String())
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	maxTokens, err := dp.GetFloat64(cfgKeyMaxTokens)
	if err != nil {
		return err
	}
	if maxTokens <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxTokens, errors.New("must be positive"))
	}
	c.MaxTokens = maxTokens

	refillRate, err := dp.GetFloat64(cfgKeyRefillRate)
	if err != nil {
		return err
	}
	if refillRate <= 0 {
		return dp.WrapKeyErr(cfgKeyRefillRate, errors.New("must be positive"))
	}
	c.RefillRate = refillRate

	cleanupWindow, err := dp.GetDuration(cfgKeyCleanupWindow)
	if err != nil {
		return err
	}
	if cleanupWindow < 0 {
		return dp.WrapKeyErr(cfgKeyCleanupWindow, errors.New("cannot be negative"))
	}
	c.CleanupWindow = cleanupWindow

	return nil
}

func (c *Config) validate() error {
	if c.MaxTokens <= 0 {
		return errors.New("max tokens must be positive")
	}
	if c.RefillRate <= 0 {
		return errors.New("refill rate must be positive")
	}
	if c.CleanupWindow < 0 {
		return errors.New("cleanup window cannot be negative")
	}
	return nil
}
