// Package endpointcache implements a bounded, TTL'd directory-to-endpoint
// cache. An unbounded memoization of Directory Registry lookups is a
// memory-leak hazard in a long-running client, so this cache caps entry
// count and expires entries after a configured TTL, plus an explicit
// Invalidate hook a Session calls on a registry NotFound response.
package endpointcache

import (
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dfs/internal/registry"
)

type entry struct {
	endpoint   registry.Endpoint
	expiresAt  time.Time
	lastAccess time.Time
}

// Cache is a process-local, size-bounded, TTL-expiring cache of
// directory→endpoint resolutions. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*entry
	now        func() time.Time
}

// New returns a Cache expiring entries after ttl (the lease lifetime is
// a sensible choice) and evicting least-recently-used entries once more
// than maxEntries are held. maxEntries <= 0 means unbounded (TTL expiry
// only).
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
		now:        time.Now,
	}
}

// Lookup returns the cached endpoint for dir, if present and unexpired.
func (c *Cache) Lookup(dir string) (registry.Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[dir]
	if !ok {
		return registry.Endpoint{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, dir)
		return registry.Endpoint{}, false
	}
	e.lastAccess = c.now()
	return e.endpoint, true
}

// Store records dir's resolved endpoint, evicting the least-recently-used
// entry first if the cache is at capacity.
func (c *Cache) Store(dir string, ep registry.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[dir]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLRULocked()
	}
	c.entries[dir] = &entry{endpoint: ep, expiresAt: now.Add(c.ttl), lastAccess: now}
}

// Invalidate drops dir's cached entry, if any. Called when a Directory
// Registry lookup returns NotFound for a path this cache previously
// served.
func (c *Cache) Invalidate(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, dir)
}

// evictLRULocked removes the least-recently-accessed entry. Caller must
// hold c.mu.
func (c *Cache) evictLRULocked() {
	type candidate struct {
		dir        string
		lastAccess time.Time
	}
	var oldest *candidate
	for dir, e := range c.entries {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldest = &candidate{dir: dir, lastAccess: e.lastAccess}
		}
	}
	if oldest != nil {
		delete(c.entries, oldest.dir)
	}
}

// Dirs returns every currently cached directory key, sorted, for tests
// and operator inspection.
func (c *Cache) Dirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.entries))
	for dir := range c.entries {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}
