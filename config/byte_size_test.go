/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestByteSizeUnmarshalYAML(t *testing.T) {
	var v struct {
		Size ByteSize `yaml:"size"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("size: 1024"), &v))
	require.Equal(t, ByteSize(1024), v.Size)

	require.NoError(t, yaml.Unmarshal([]byte("size: 10M"), &v))
	require.Equal(t, ByteSize(10*1024*1024), v.Size)

	require.NoError(t, yaml.Unmarshal([]byte("size: 1Ki"), &v))
	require.Equal(t, ByteSize(1024), v.Size)

	require.Error(t, yaml.Unmarshal([]byte("size: nonsense"), &v))
}

func TestByteSizeUnmarshalJSON(t *testing.T) {
	var v struct {
		Size ByteSize `json:"size"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"size": 2048}`), &v))
	require.Equal(t, ByteSize(2048), v.Size)

	require.NoError(t, json.Unmarshal([]byte(`{"size": "1G"}`), &v))
	require.Equal(t, ByteSize(1024*1024*1024), v.Size)

	require.Error(t, json.Unmarshal([]byte(`{"size": -1}`), &v))
}
