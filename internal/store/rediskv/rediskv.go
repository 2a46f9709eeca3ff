// Package rediskv stores client state in Redis so several machines can share
// one session.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DB is a prefixed key/value space on a Redis server.
type DB struct {
	client *redis.Client
	prefix string
}

// Open connects to addr, which may be a redis:// URL or host:port,
// and verifies the connection with PING.
func Open(ctx context.Context, addr, prefix string) (*DB, error) {
	if addr == "" {
		return nil, errors.New("empty redis address")
	}
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url %q: %w", addr, err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *DB {
	return &DB{client: client, prefix: prefix}
}

func (d *DB) key(k string) string { return d.prefix + k }

func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := d.client.Get(ctx, d.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DB) Set(ctx context.Context, key, value string) error {
	return d.client.Set(ctx, d.key(key), value, 0).Err()
}

func (d *DB) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = d.key(k)
	}
	return d.client.Del(ctx, full...).Err()
}

func (d *DB) Close() error { return d.client.Close() }
