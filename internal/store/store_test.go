package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsched/internal/config"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, mem)

	db, err := Open(ctx, config.StorageConfig{Driver: "sqlite", DBPath: filepath.Join(t.TempDir(), "kv.db")})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Set(ctx, KeyMode, "light"))
	v, ok, err := db.Get(ctx, KeyMode)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)

	_, err = Open(ctx, config.StorageConfig{Driver: "etcd"})
	assert.Error(t, err)
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, KeyToken, "tok"))
	require.NoError(t, m.Set(ctx, KeyUser, "{}"))
	require.NoError(t, m.Remove(ctx, KeyToken, KeyUser))
	_, ok, _ := m.Get(ctx, KeyToken)
	assert.False(t, ok)
}
