// Package querycache caches backend query results keyed by resource type and
// filter parameters.
//
// Identical in-flight fetches are deduplicated. A shared fetch runs detached
// from the caller that started it: a caller whose context ends stops waiting
// but never cancels the fetch other callers may be waiting on.
package querycache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/infralens/infralens/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 30 * time.Second
	DefaultGCTime    = 5 * time.Minute

	refetchConcurrency = 4
)

// Key identifies one cached query.
type Key struct {
	Scope    string
	Resource string
	Params   string
}

func (k Key) String() string {
	return k.Scope + "|" + k.Resource + "|" + k.Params
}

// FetchFunc loads a value. The context it receives is not tied to any single
// caller's cancellation.
type FetchFunc func(ctx context.Context) (any, error)

// entry.gen counts invalidations. A fetch started before the latest one may
// still finish, but its result is not stored.
type entry struct {
	value     any
	fetchedAt time.Time
	usedAt    time.Time
	stale     bool
	gen       uint64
	fetch     FetchFunc
}

type Options struct {
	StaleTime time.Duration
	GCTime    time.Duration
	Now       func() time.Time
}

type Cache struct {
	mu        sync.Mutex
	entries   map[Key]*entry
	group     singleflight.Group
	staleTime time.Duration
	gcTime    time.Duration
	now       func() time.Time
}

func New(opts Options) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		entries:   make(map[Key]*entry),
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		now:       opts.Now,
	}
}

// Fetch returns the cached value for key when fresh, otherwise loads it with fn.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("querycache: %s holds %T", key.Resource, v)
	}
	return out, nil
}

func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.usedAt = now
		e.fetch = fetch
		if !e.stale && now.Sub(e.fetchedAt) < c.staleTime {
			v := e.value
			c.mu.Unlock()
			metrics.CacheLookupsTotal.WithLabelValues(key.Resource, "hit").Inc()
			return v, nil
		}
		metrics.CacheLookupsTotal.WithLabelValues(key.Resource, "stale").Inc()
	} else {
		metrics.CacheLookupsTotal.WithLabelValues(key.Resource, "miss").Inc()
	}
	c.mu.Unlock()

	return c.load(ctx, key, fetch)
}

func (c *Cache) load(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	c.mu.Lock()
	var gen uint64
	if e, ok := c.entries[key]; ok {
		gen = e.gen
	}
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	flight := key.String() + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		v, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.store(key, gen, v, fetch)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.CacheLookupsTotal.WithLabelValues(key.Resource, "shared").Inc()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) store(key Key, gen uint64, v any, fetch FetchFunc) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.gen != gen {
		return
	}
	c.entries[key] = &entry{value: v, fetchedAt: now, usedAt: now, gen: gen, fetch: fetch}
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// Peek returns the cached value regardless of staleness.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// IsStale reports whether key is cached and due for a refetch.
func (c *Cache) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	return e.stale || c.now().Sub(e.fetchedAt) >= c.staleTime
}

// Invalidate marks every entry of the given resources stale and returns the
// marked keys.
func (c *Cache) Invalidate(resources ...string) []Key {
	want := make(map[string]struct{}, len(resources))
	for _, r := range resources {
		want[r] = struct{}{}
	}
	return c.markStale(func(k Key) bool {
		_, ok := want[k.Resource]
		return ok
	})
}

// InvalidateAll marks every entry stale and returns the marked keys.
func (c *Cache) InvalidateAll() []Key {
	return c.markStale(func(Key) bool { return true })
}

func (c *Cache) markStale(match func(Key) bool) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for k, e := range c.entries {
		if !match(k) {
			continue
		}
		e.stale = true
		e.gen++
		keys = append(keys, k)
		metrics.CacheInvalidationsTotal.WithLabelValues(k.Resource).Inc()
	}
	sortKeys(keys)
	return keys
}

// Refetch reloads the given keys with their last fetch funcs. Keys that were
// pruned meanwhile are skipped. All keys are attempted; the first error is
// returned.
func (c *Cache) Refetch(ctx context.Context, keys []Key) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refetchConcurrency)
	for _, key := range keys {
		c.mu.Lock()
		e, ok := c.entries[key]
		var fetch FetchFunc
		if ok {
			fetch = e.fetch
		}
		c.mu.Unlock()
		if fetch == nil {
			continue
		}
		g.Go(func() error {
			_, err := c.load(context.WithoutCancel(gctx), key, fetch)
			if err != nil {
				return fmt.Errorf("refetch %s: %w", key.Resource, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Prune drops entries unused for longer than the GC time.
func (c *Cache) Prune() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.usedAt) >= c.gcTime {
			delete(c.entries, k)
			removed++
		}
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
