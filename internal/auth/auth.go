// Package auth holds the client session: a bearer token and the profile it
// belongs to, mirrored between memory and durable local storage.
package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"tweetsched/internal/logging"
	"tweetsched/internal/model"
	"tweetsched/internal/state"
	"tweetsched/internal/store"
)

// Store is the auth state container. The zero session is unauthenticated.
type Store struct {
	storage store.Storage
	state   *state.Store[model.Session]
}

func New(storage store.Storage) *Store {
	return &Store{storage: storage, state: state.New(model.Session{})}
}

// SetAuth persists token and user, then publishes the new session.
// If persisting fails both the stored and the in-memory session are left
// as they were.
func (s *Store) SetAuth(ctx context.Context, token string, user model.User) error {
	if token == "" {
		return fmt.Errorf("set auth: empty token")
	}
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("set auth: encode user: %w", err)
	}
	prev, hadPrev, err := s.storage.Get(ctx, store.KeyToken)
	if err != nil {
		return fmt.Errorf("set auth: %w", err)
	}
	if err := s.storage.Set(ctx, store.KeyToken, token); err != nil {
		return fmt.Errorf("set auth: %w", err)
	}
	if err := s.storage.Set(ctx, store.KeyUser, string(b)); err != nil {
		// put the stored session back the way it was
		if hadPrev {
			_ = s.storage.Set(ctx, store.KeyToken, prev)
		} else {
			_ = s.storage.Remove(ctx, store.KeyToken)
		}
		return fmt.Errorf("set auth: %w", err)
	}
	s.state.Set(model.Session{Token: token, User: user})
	return nil
}

// Logout clears the session. Memory is always cleared; a storage failure is
// still reported so callers can warn that the next start may restore it.
func (s *Store) Logout(ctx context.Context) error {
	err := s.storage.Remove(ctx, store.KeyToken, store.KeyUser)
	s.state.Set(model.Session{})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Restore re-hydrates the session from storage. It needs both the token and
// a parseable user; anything else leaves the session unauthenticated.
func (s *Store) Restore(ctx context.Context) bool {
	token, ok, err := s.storage.Get(ctx, store.KeyToken)
	if err != nil || !ok || token == "" {
		return false
	}
	raw, ok, err := s.storage.Get(ctx, store.KeyUser)
	if err != nil || !ok {
		return false
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		logging.Debug("auth_restore_discarded", map[string]any{"error": err})
		return false
	}
	s.state.Set(model.Session{Token: token, User: user})
	return true
}

// Token returns the current bearer token or "".
func (s *Store) Token() string { return s.state.Get().Token }

// Session returns a snapshot of the session and whether it is authenticated.
func (s *Store) Session() (model.Session, bool) {
	sess := s.state.Get()
	return sess, sess.Token != ""
}

func (s *Store) Authenticated() bool { return s.Token() != "" }

// Subscribe registers fn for session changes.
func (s *Store) Subscribe(fn func(model.Session)) (cancel func()) { return s.state.Subscribe(fn) }
