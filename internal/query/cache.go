// Package query is the client's keyed cache of server data. Entries are
// fresh until invalidated by a mutation, a push event or a refresh tick.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tweetsched/internal/logging"
	"tweetsched/internal/metrics"
)

// Keys shared by every view.
const (
	KeyTweets    = "tweets"
	KeyAnalytics = "analytics"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Snapshot describes one key without its data.
type Snapshot struct {
	Status    Status
	Err       error
	Fresh     bool
	UpdatedAt time.Time
}

// Event is delivered to subscribers of a key.
type Event struct {
	Key    string
	Reason string
	Status Status
}

type entry struct {
	data      any
	has       bool
	gen       uint64
	storedGen uint64
	stored    bool
	fresh     bool
	status    Status
	err       error
	updatedAt time.Time
}

// Cache is safe for concurrent use. Instances are independent.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	subs      map[string]map[int]func(Event)
	nextSub   int
	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
}

type Option func(*Cache)

// WithStaleTime makes entries expire d after they were stored. Zero keeps
// them fresh until invalidated.
func WithStaleTime(d time.Duration) Option { return func(c *Cache) { c.staleTime = d } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		subs:    make(map[string]map[int]func(Event)),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// entry returns the entry for key; c.mu must be held.
func (c *Cache) entry(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{status: StatusIdle}
		c.entries[key] = e
	}
	return e
}

func (c *Cache) usable(e *entry) bool {
	if !e.has || !e.fresh {
		return false
	}
	return c.staleTime <= 0 || c.now().Sub(e.updatedAt) < c.staleTime
}

// Fetch returns the cached value for key when fresh, otherwise runs fn.
// Concurrent callers for the same key and generation share one call. A
// result whose fetch began before an Invalidate is kept but never marked
// fresh. Failures are recorded on the key and not retried.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	c.mu.Lock()
	e := c.entry(key)
	if c.usable(e) {
		v, ok := e.data.(T)
		c.mu.Unlock()
		if ok {
			metrics.IncCacheHit(key)
			return v, nil
		}
		return zero, fmt.Errorf("query %s: cached %T, want %T", key, e.data, zero)
	}
	gen := e.gen
	e.status = StatusLoading
	c.mu.Unlock()
	metrics.IncCacheMiss(key)
	c.emit(Event{Key: key, Reason: "fetch", Status: StatusLoading})

	// The shared call outlives any single waiter; each waiter still honors
	// its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		v, err := fn(shared)
		c.store(key, gen, v, err)
		return v, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query %s: fetched %T, want %T", key, res.Val, zero)
		}
		return v, nil
	}
}

func (c *Cache) store(key string, gen uint64, v any, err error) {
	c.mu.Lock()
	e := c.entry(key)
	if e.stored && gen < e.storedGen {
		// A fetch from a later generation already landed.
		c.mu.Unlock()
		logging.Debug("query_result_dropped", map[string]any{"key": key, "gen": gen, "stored": e.storedGen})
		return
	}
	e.storedGen, e.stored = gen, true
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.data, e.has = v, true
		e.status, e.err = StatusSuccess, nil
		e.updatedAt = c.now()
		e.fresh = e.gen == gen
	}
	status, current := e.status, e.gen == gen
	c.mu.Unlock()
	if err != nil {
		logging.Warn("query_fetch_failed", map[string]any{"key": key, "error": err})
	}
	if !current {
		logging.Debug("query_result_outdated", map[string]any{"key": key, "gen": gen})
	}
	c.emit(Event{Key: key, Reason: "fetch", Status: status})
}

// Invalidate marks key stale and notifies subscribers so mounted views
// re-fetch. In-flight fetches for the old generation cannot refresh it.
func (c *Cache) Invalidate(key, reason string) {
	c.mu.Lock()
	e := c.entry(key)
	e.gen++
	e.fresh = false
	status := e.status
	c.mu.Unlock()
	metrics.IncInvalidation(key, reason)
	logging.Debug("query_invalidated", map[string]any{"key": key, "reason": reason})
	c.emit(Event{Key: key, Reason: reason, Status: status})
}

// Mutate runs fn and invalidates keys only when it succeeds.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), keys ...string) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	for _, k := range keys {
		c.Invalidate(k, "mutation")
	}
	return v, nil
}

// Peek returns the last stored value for key regardless of freshness.
func Peek[T any](c *Cache, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.has {
		var zero T
		return zero, false
	}
	v, ok := e.data.(T)
	return v, ok
}

// Status reports the state of key. The last error stays until the next
// fetch completes.
func (c *Cache) Status(key string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Status: StatusIdle}
	}
	return Snapshot{Status: e.status, Err: e.err, Fresh: c.usable(e), UpdatedAt: e.updatedAt}
}

// Subscribe registers fn for events on key. Handlers run synchronously on
// the goroutine that caused the event and must not block.
func (c *Cache) Subscribe(key string, fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	if c.subs[key] == nil {
		c.subs[key] = make(map[int]func(Event))
	}
	c.subs[key][id] = fn
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs[key], id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) emit(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs[ev.Key]))
	for _, fn := range c.subs[ev.Key] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
