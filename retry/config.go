/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"errors"
	"time"

	"github.com/ianmin2/go-resilience/config"
)

const cfgDefaultKeyPrefix = "retry"

const (
	cfgKeyMaxRetries = "maxRetries"
	cfgKeyBaseDelay  = "baseDelay"
	cfgKeyMaxDelay   = "maxDelay"
	cfgKeyJitter     = "jitter"
)

// Default values of configuration parameters.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 200 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
)

// Config represents a set of parameters for a single Execute call.
// The zero value is not usable, construct it explicitly or use one of the presets.
type Config struct {
	// MaxRetries is the number of retries after the first attempt,
	// i.e. the total number of attempts is MaxRetries + 1.
	MaxRetries int `mapstructure:"maxRetries" yaml:"maxRetries" json:"maxRetries"`

	// BaseDelay is the delay before the first retry. Each following delay is doubled.
	BaseDelay time.Duration `mapstructure:"baseDelay" yaml:"baseDelay" json:"baseDelay"`

	// MaxDelay caps the exponential growth of the delay. Must be >= BaseDelay.
	MaxDelay time.Duration `mapstructure:"maxDelay" yaml:"maxDelay" json:"maxDelay"`

	// Jitter adds a uniformly random amount in [0, delay/2] to each delay
	// to avoid synchronized retry storms across callers.
	Jitter bool `mapstructure:"jitter" yaml:"jitter" json:"jitter"`

	// IsRetryable overrides the default transient-failure classification (DefaultIsRetryable).
	// It is not read from configuration files.
	IsRetryable IsRetryable `mapstructure:"-" yaml:"-" json:"-"`

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
	dp.SetDefault(cfgKeyMaxRetries, DefaultMaxRetries)
	dp.SetDefault(cfgKeyBaseDelay, DefaultBaseDelay.String())
	dp.SetDefault(cfgKeyMaxDelay, DefaultMaxDelay.String())
	dp.SetDefault(cfgKeyJitter, true)
}

// Set is part of config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	maxRetries, err := dp.GetInt(cfgKeyMaxRetries)
	if err != nil {
		return err
	}
	if maxRetries < 0 {
		return dp.WrapKeyErr(cfgKeyMaxRetries, errors.New("cannot be negative"))
	}
	c.MaxRetries = maxRetries

	baseDelay, err := dp.GetDuration(cfgKeyBaseDelay)
	if err != nil {
		return err
	}
	if baseDelay <= 0 {
		return dp.WrapKeyErr(cfgKeyBaseDelay, errors.New("must be positive"))
	}
	c.BaseDelay = baseDelay

	maxDelay, err := dp.GetDuration(cfgKeyMaxDelay)
	if err != nil {
		return err
	}
	if maxDelay < baseDelay {
		return dp.WrapKeyErr(cfgKeyMaxDelay, errors.New("cannot be less than base delay"))
	}
	c.MaxDelay = maxDelay

	if c.Jitter, err = dp.GetBool(cfgKeyJitter); err != nil {
		return err
	}

	return nil
}

func (c *Config) validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.BaseDelay <= 0 {
		return errors.New("base delay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		return errors.New("max delay cannot be less than base delay")
	}
	return nil
}
