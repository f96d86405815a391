/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ianmin2/go-resilience/log"
)

func TestRecorder(t *testing.T) {
	recorder := NewRecorder()
	recorder.Info("bucket evicted", log.String("key", "user-42"), log.Int("count", 3))
	recorder.With(log.String("component", "sweeper")).Warn("sweep is slow")

	entry, found := recorder.FindEntry("bucket evicted")
	require.True(t, found)
	require.Equal(t, log.LevelInfo, entry.Level)
	keyField, found := entry.FindField("key")
	require.True(t, found)
	require.Equal(t, "user-42", string(keyField.Bytes))

	entry, found = recorder.FindEntry("sweep is slow")
	require.True(t, found)
	_, found = entry.FindField("component")
	require.True(t, found)

	require.Len(t, recorder.Entries(), 2)
}
