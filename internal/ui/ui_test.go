package ui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsched/internal/store"
	"tweetsched/internal/theme"
)

func TestDefaultsToDark(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, theme.Dark, New(ctx, store.NewMemory()).Mode())

	mem := store.NewMemory()
	require.NoError(t, mem.Set(ctx, store.KeyMode, "neon"))
	assert.Equal(t, theme.Dark, New(ctx, mem).Mode())
}

func TestTogglePersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := New(ctx, mem)
	var seen []theme.Mode
	cancel := s.Subscribe(func(m theme.Mode) { seen = append(seen, m) })
	defer cancel()

	m, err := s.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, theme.Light, m)
	assert.Equal(t, []theme.Mode{theme.Light}, seen)

	assert.Equal(t, theme.Light, New(ctx, mem).Mode())
}

func TestSetRejectsUnknownMode(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, store.NewMemory())
	assert.Error(t, s.Set(ctx, theme.Mode("sepia")))
	assert.Equal(t, theme.Dark, s.Mode())
}
