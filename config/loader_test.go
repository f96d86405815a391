/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testServiceConfig struct {
	Name     string
	Interval time.Duration
	Burst    int

	keyPrefix string
}

func (c *testServiceConfig) KeyPrefix() string {
	return c.keyPrefix
}

func (c *testServiceConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("interval", "30s")
	dp.SetDefault("burst", 10)
}

func (c *testServiceConfig) Set(dp DataProvider) error {
	var err error
	if c.Name, err = dp.GetString("name"); err != nil {
		return err
	}
	if c.Interval, err = dp.GetDuration("interval"); err != nil {
		return err
	}
	if c.Burst, err = dp.GetInt("burst"); err != nil {
		return err
	}
	return nil
}

func TestLoaderLoadFromReader(t *testing.T) {
	cfgData := bytes.NewBufferString(`
service:
  name: review-bot
  interval: 5s
`)
	cfg := &testServiceConfig{keyPrefix: "service"}
	err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, "review-bot", cfg.Name)
	require.Equal(t, 5*time.Second, cfg.Interval)
	require.Equal(t, 10, cfg.Burst) // Default value.
}

type testQueueConfig struct {
	Workers int
}

func (c *testQueueConfig) KeyPrefix() string {
	return "queue"
}

func (c *testQueueConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault("workers", 4)
}

func (c *testQueueConfig) Set(dp DataProvider) error {
	var err error
	c.Workers, err = dp.GetInt("workers")
	return err
}

func TestLoaderLoadsMultipleConfigs(t *testing.T) {
	cfgData := bytes.NewBufferString(`
service:
  name: review-bot
queue:
  workers: 8
`)
	svcCfg := &testServiceConfig{keyPrefix: "service"}
	queueCfg := &testQueueConfig{}
	err := NewDefaultLoader("").LoadFromReader(cfgData, DataTypeYAML, svcCfg, queueCfg)
	require.NoError(t, err)
	require.Equal(t, "review-bot", svcCfg.Name)
	require.Equal(t, 30*time.Second, svcCfg.Interval) // Default value.
	require.Equal(t, 8, queueCfg.Workers)

	// Each config reads only its own key prefix.
	require.Equal(t, 10, svcCfg.Burst)
}

func TestLoaderEnvVarsOverride(t *testing.T) {
	t.Setenv("TESTAPP_SERVICE_BURST", "42")

	cfgData := bytes.NewBufferString(`
service:
  name: review-bot
  burst: 7
`)
	cfg := &testServiceConfig{keyPrefix: "service"}
	err := NewDefaultLoader("testapp").LoadFromReader(cfgData, DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Burst)
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	va := NewViperAdapter()
	err := va.SetFromReader(bytes.NewBufferString(`
outer:
  inner:
    value: hello
`), DataTypeYAML)
	require.NoError(t, err)

	dp := NewKeyPrefixedDataProvider(va, "outer.inner")
	val, err := dp.GetString("value")
	require.NoError(t, err)
	require.Equal(t, "hello", val)

	_, err = dp.GetInt("value")
	require.Error(t, err)
	require.Contains(t, err.Error(), "outer.inner.value")
}

func TestViperAdapterGetStringFromSet(t *testing.T) {
	va := NewViperAdapter()
	va.Set("mode", "fast")

	val, err := va.GetStringFromSet("mode", []string{"fast", "slow"}, false)
	require.NoError(t, err)
	require.Equal(t, "fast", val)

	_, err = va.GetStringFromSet("mode", []string{"on", "off"}, false)
	require.Error(t, err)
}
