package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsReachLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := L()
	Set(zap.New(core))
	defer Set(prev)

	Info("cache_invalidate", map[string]any{"key": "tweets", "reason": "mutation"})
	Error("fetch_failed", map[string]any{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "cache_invalidate", entries[0].Message)
	assert.Equal(t, "tweets", entries[0].ContextMap()["key"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	prev := L()
	defer Set(prev)
	require.NoError(t, Init("loud", false))
	assert.False(t, L().Core().Enabled(zap.DebugLevel))
	assert.True(t, L().Core().Enabled(zap.InfoLevel))
}
