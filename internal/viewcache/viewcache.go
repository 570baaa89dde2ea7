// Package viewcache holds the memory-resident cached view of remote
// state. Entries carry a generation counter per (kind, scope): a mutation
// bumps the counter, marking every entry of that kind and scope stale
// without re-fetching immediately. Reads go through single-flight
// deduplication so concurrent identical fetches share one request.
package viewcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Kind names a cached resource family (feed pages, balances, history).
type Kind string

// Key identifies one cache entry. Paginated reads carry their page;
// singleton reads use the zero page.
type Key struct {
	Kind   Kind
	Scope  string
	Offset int
	Count  int
}

// String renders a stable identifier used for single-flight grouping.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d:%d", k.Kind, k.Scope, k.Offset, k.Count)
}

type genKey struct {
	kind  Kind
	scope string
}

type entry struct {
	value     any
	gen       uint64
	fetchedAt time.Time
}

// Cache is the process-wide view cache. Only the orchestrator mutates it.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]entry
	gens    map[genKey]uint64
	group   singleflight.Group
	now     func() time.Time
}

// New builds an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[Key]entry),
		gens:    make(map[genKey]uint64),
		now:     time.Now,
	}
}

// Invalidate bumps the generation for every entry of the given kind and
// scope. Stale entries stay resident until the next read replaces them.
func (c *Cache) Invalidate(kind Kind, scope string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[genKey{kind: kind, scope: scope}]++
}

// InvalidateWhere bumps the generation for every (kind, scope) holding at
// least one resident entry matched by fn. Lets a mutation invalidate only
// the pages that actually contain the mutated resource.
func (c *Cache) InvalidateWhere(kind Kind, match func(key Key, value any) bool) {
	if c == nil || match == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stale := make(map[genKey]struct{})
	for key, e := range c.entries {
		if key.Kind != kind {
			continue
		}
		if match(key, e.value) {
			stale[genKey{kind: kind, scope: key.Scope}] = struct{}{}
		}
	}
	for gk := range stale {
		c.gens[gk]++
	}
}

// Peek returns the resident entry for key when it is fresh, without
// fetching. Used for advisory checks that must never block.
func (c *Cache) Peek(key Key, ttl time.Duration) (any, bool) {
	if c == nil {
		return nil, false
	}
	return c.lookup(key, ttl)
}

// Clear drops every entry and generation. Used on logout; the cache is
// rebuilt from the remote services afterwards.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]entry)
	c.gens = make(map[genKey]uint64)
}

// Update rewrites resident entries of one kind and scope in place without
// marking them stale. fn returns the replacement value and whether to
// apply it. Used to fold a known mutation result (e.g. a fresh
// transaction) into cached pages.
func (c *Cache) Update(kind Kind, scope string, fn func(key Key, value any) (any, bool)) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if key.Kind != kind || key.Scope != scope {
			continue
		}
		if next, ok := fn(key, e.value); ok {
			e.value = next
			c.entries[key] = e
		}
	}
}

// lookup returns a fresh entry value, or false when missing, stale or
// older than ttl.
func (c *Cache) lookup(key Key, ttl time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.gens[genKey{kind: key.Kind, scope: key.Scope}]
	e, ok := c.entries[key]
	if !ok || e.gen != gen {
		return nil, false
	}
	if ttl > 0 && c.now().Sub(e.fetchedAt) > ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) currentGen(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[genKey{kind: key.Kind, scope: key.Scope}]
}

func (c *Cache) store(key Key, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, gen: gen, fetchedAt: c.now()}
}

// ReadThrough returns the cached value for key, fetching it when missing
// or stale. Concurrent callers for the same key share one in-flight
// fetch. The entry is stored against the generation observed before the
// fetch started: a mutation completing mid-fetch marks the stored entry
// stale for subsequent reads, while in-flight callers still receive the
// fetched value.
func ReadThrough[T any](ctx context.Context, c *Cache, key Key, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil || fetch == nil {
		return zero, fmt.Errorf("view cache is not configured")
	}
	if cached, ok := c.lookup(key, ttl); ok {
		value, ok := cached.(T)
		if ok {
			return value, nil
		}
	}

	result, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Re-check: a racing flight may have just populated the entry.
		if cached, ok := c.lookup(key, ttl); ok {
			return cached, nil
		}
		gen := c.currentGen(key)
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, value, gen)
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	value, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry for %s has unexpected type", key)
	}
	return value, nil
}
