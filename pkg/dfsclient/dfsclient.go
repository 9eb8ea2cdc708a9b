// Package dfsclient implements the Client Session: the component
// composing the Directory Registry, the Lease Manager and a Storage
// Node into an open/buffer/flush/close handle, with an
// optimistic, Last-Modified-validated local cache. This is the library
// other programs import to read and write files stored by the
// coordination protocol's three daemons.
package dfsclient

import (
	"context"
	"time"

	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/endpointcache"
	"github.com/marmos91/dfs/internal/lease"
	leaseremote "github.com/marmos91/dfs/internal/lease/remote"
	"github.com/marmos91/dfs/internal/registry"
	registryremote "github.com/marmos91/dfs/internal/registry/remote"
	storageremote "github.com/marmos91/dfs/internal/storage/remote"
	"github.com/marmos91/dfs/pkg/spillbuf"
)

// Session owns the process-local state a client accumulates: a bounded,
// TTL'd endpoint-resolution cache, a storage-client pool, and the table
// of cache-retained open handles. Callers construct Sessions explicitly;
// there is no package-level shared state.
type Session struct {
	registry registry.Store
	leases   lease.Manager
	maxSize  int64

	endpoints      *endpointcache.Cache
	storageClients *storageClientPool
	cache          *handleCache
}

// SessionOption configures a Session at construction time.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	maxSize           int64
	endpointTTL       time.Duration
	endpointCacheSize int
}

// WithMaxSize sets the in-memory threshold above which an open handle's
// buffered body spills to a temporary file ("max_size" in the client
// config). Defaults to spillbuf.DefaultThreshold.
func WithMaxSize(n int64) SessionOption {
	return func(c *sessionConfig) { c.maxSize = n }
}

// WithEndpointCacheTTL overrides the directory-to-endpoint memoization
// TTL. The configured lease lifetime is a sensible value.
func WithEndpointCacheTTL(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.endpointTTL = d }
}

// WithEndpointCacheSize bounds the number of distinct directories the
// endpoint cache memoizes at once.
func WithEndpointCacheSize(n int) SessionOption {
	return func(c *sessionConfig) { c.endpointCacheSize = n }
}

// NewSession builds a Session over an already-constructed registry.Store
// and lease.Manager, which are typically internal/registry/remote.Client
// and internal/lease/remote.Client pointed at the live daemons, but may be
// in-memory fakes in tests.
func NewSession(reg registry.Store, leases lease.Manager, opts ...SessionOption) *Session {
	cfg := sessionConfig{
		maxSize:           spillbuf.DefaultThreshold,
		endpointTTL:       60 * time.Second,
		endpointCacheSize: 256,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		registry:       reg,
		leases:         leases,
		maxSize:        cfg.maxSize,
		endpoints:      endpointcache.New(cfg.endpointTTL, cfg.endpointCacheSize),
		storageClients: newStorageClientPool(),
		cache:          newHandleCache(),
	}
}

// NewFromConfig builds a Session wired to the Directory Registry and
// Lease Manager named in cfg. The endpoint cache keeps its default TTL.
func NewFromConfig(cfg config.ClientConfig) *Session {
	reg := registryremote.New(cfg.NameServer)
	leases := leaseremote.New(cfg.LockServer)
	return NewSession(reg, leases, WithMaxSize(cfg.MaxSize))
}

// Close releases the Session's underlying registry and lease clients and
// every cache-retained handle's local resources.
func (s *Session) Close() error {
	s.cache.closeAll()
	_ = s.leases.Close()
	return s.registry.Close()
}

// resolveEndpoint resolves path's serving endpoint, consulting the bounded
// endpoint cache before the Directory Registry itself, and invalidating a
// stale cache entry on a NotFound.
func (s *Session) resolveEndpoint(ctx context.Context, path string) (registry.Endpoint, error) {
	dir := registry.DirOf(path)
	if ep, ok := s.endpoints.Lookup(dir); ok {
		return ep, nil
	}

	ep, err := s.registry.Lookup(ctx, path)
	if err != nil {
		if dfserr.Is(err, dfserr.NotFound) {
			s.endpoints.Invalidate(dir)
		}
		return registry.Endpoint{}, err
	}
	s.endpoints.Store(dir, ep)
	return ep, nil
}

func (s *Session) storageClientFor(ep registry.Endpoint) *storageremote.Client {
	return s.storageClients.get(ep)
}
