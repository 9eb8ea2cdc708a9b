package dfsclient

import (
	"sync"

	"github.com/marmos91/dfs/internal/registry"
	storageremote "github.com/marmos91/dfs/internal/storage/remote"
)

// storageClientPool memoizes one storageremote.Client per storage
// endpoint a Session has talked to, so repeated opens against the same
// node reuse its underlying *http.Client (and hence its connection
// pool) instead of constructing a fresh one per call.
type storageClientPool struct {
	mu      sync.Mutex
	clients map[string]*storageremote.Client
}

func newStorageClientPool() *storageClientPool {
	return &storageClientPool{clients: make(map[string]*storageremote.Client)}
}

func (p *storageClientPool) get(ep registry.Endpoint) *storageremote.Client {
	key := ep.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c
	}
	c := storageremote.New("http://" + key)
	p.clients[key] = c
	return c
}

// handleCache is the process-local mapping of path to cache-retained
// open handle. Entries persist until evicted by a failed
// Session.FromCache validation or cleared by Session.Close.
type handleCache struct {
	mu      sync.Mutex
	entries map[string]*Handle
}

func newHandleCache() *handleCache {
	return &handleCache{entries: make(map[string]*Handle)}
}

func (c *handleCache) store(path string, h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = h
}

func (c *handleCache) lookup(path string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.entries[path]
	return h, ok
}

func (c *handleCache) evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

func (c *handleCache) closeAll() {
	c.mu.Lock()
	handles := make([]*Handle, 0, len(c.entries))
	for _, h := range c.entries {
		handles = append(handles, h)
	}
	c.entries = make(map[string]*Handle)
	c.mu.Unlock()

	for _, h := range handles {
		_ = h.buf.Close()
	}
}
