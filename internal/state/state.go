// Package state provides a small observable container used for process-wide
// client state such as the session and the theme preference.
package state

import "sync"

// Store holds one value of type T. Writes notify subscribers synchronously,
// after the lock is released, in subscription order.
type Store[T any] struct {
	mu    sync.RWMutex
	val   T
	next  int
	order []int
	subs  map[int]func(T)
}

// New returns a store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{val: initial, subs: make(map[int]func(T))}
}

// Get returns a snapshot of the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.val
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(v T) {
	s.Update(func(T) T { return v })
}

// Update applies fn to the current value under the write lock.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.val = fn(s.val)
	v := s.val
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()
	for _, f := range fns {
		f(v)
	}
}

// Subscribe registers fn for future writes. The returned func removes it.
func (s *Store[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
