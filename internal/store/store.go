// Package store is the client's durable local storage: a small string
// key/value space that survives restarts, like browser local storage.
package store

import (
	"context"
	"fmt"
	"sync"

	"tweetsched/internal/config"
	"tweetsched/internal/store/rediskv"
	"tweetsched/internal/store/sqlitekv"
)

// Keys used by the client.
const (
	KeyToken = "ts_token"
	KeyUser  = "ts_user"
	KeyMode  = "ts_mode"
)

// Storage is a durable string key/value space.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// Open selects a backend from cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlitekv.Open(cfg.DBPath)
	case "redis":
		return rediskv.Open(ctx, cfg.RedisURL, cfg.Prefix)
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Memory is an in-process Storage for tests and throwaway sessions.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory { return &Memory{data: make(map[string]string)} }

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
