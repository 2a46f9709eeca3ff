// Package ui holds presentation preferences that survive restarts.
package ui

import (
	"context"
	"fmt"

	"tweetsched/internal/logging"
	"tweetsched/internal/state"
	"tweetsched/internal/store"
	"tweetsched/internal/theme"
)

type Store struct {
	storage store.Storage
	state   *state.Store[theme.Mode]
}

// New loads the stored mode, falling back to theme.Default when it is
// missing, unreadable or not a known mode.
func New(ctx context.Context, storage store.Storage) *Store {
	mode := theme.Default
	if raw, ok, err := storage.Get(ctx, store.KeyMode); err == nil && ok {
		if m, err := theme.ParseMode(raw); err == nil {
			mode = m
		} else {
			logging.Debug("ui_mode_discarded", map[string]any{"value": raw})
		}
	}
	return &Store{storage: storage, state: state.New(mode)}
}

func (s *Store) Mode() theme.Mode { return s.state.Get() }

// Toggle flips the mode and returns the new value.
func (s *Store) Toggle(ctx context.Context) (theme.Mode, error) {
	next := s.Mode().Next()
	if err := s.Set(ctx, next); err != nil {
		return s.Mode(), err
	}
	return next, nil
}

// Set persists m, then publishes it.
func (s *Store) Set(ctx context.Context, m theme.Mode) error {
	if _, err := theme.ParseMode(string(m)); err != nil {
		return err
	}
	if err := s.storage.Set(ctx, store.KeyMode, string(m)); err != nil {
		return fmt.Errorf("save theme mode: %w", err)
	}
	s.state.Set(m)
	return nil
}

func (s *Store) Subscribe(fn func(theme.Mode)) (cancel func()) { return s.state.Subscribe(fn) }
