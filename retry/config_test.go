/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ianmin2/go-resilience/config"
)

func TestConfigSet(t *testing.T) {
	cfgData := bytes.NewBufferString(`
retry:
  maxRetries: 5
  baseDelay: 250ms
  maxDelay: 20s
  jitter: false
`)
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.BaseDelay)
	require.Equal(t, 20*time.Second, cfg.MaxDelay)
	require.False(t, cfg.Jitter)
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := NewConfig()
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString("{}"), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	require.Equal(t, DefaultBaseDelay, cfg.BaseDelay)
	require.Equal(t, DefaultMaxDelay, cfg.MaxDelay)
	require.True(t, cfg.Jitter)
}

func TestConfigSetErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "negative max retries",
			yaml:    "retry:\n  maxRetries: -1",
			wantErr: "retry.maxRetries",
		},
		{
			name:    "max delay less than base delay",
			yaml:    "retry:\n  baseDelay: 1s\n  maxDelay: 100ms",
			wantErr: "retry.maxDelay",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(
				bytes.NewBufferString(tt.yaml), config.DataTypeYAML, cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
