// Package memstore is an in-memory Directory Registry store, used in tests
// and for single-process development runs where durability does not
// matter.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/registry"
)

// Store is a mutex-guarded map[directory]Endpoint.
type Store struct {
	mu      sync.RWMutex
	entries map[string]registry.Endpoint
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]registry.Endpoint)}
}

var _ registry.Store = (*Store)(nil)

func (s *Store) Lookup(ctx context.Context, filePath string) (registry.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return registry.Endpoint{}, err
	}
	dir := registry.DirOf(filePath)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.entries[dir]
	if !ok {
		return registry.Endpoint{}, dfserr.NewNotFoundError(filePath)
	}
	return ep, nil
}

func (s *Store) List(ctx context.Context) ([]registry.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]registry.DirEntry, 0, len(s.entries))
	for dir, ep := range s.entries {
		out = append(out, registry.DirEntry{Directory: dir, Endpoint: ep})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Directory < out[j].Directory })
	return out, nil
}

func (s *Store) Register(ctx context.Context, dir string, ep registry.Endpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := registry.NormalizeDir(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[norm] = ep
	logger.Info("directory registered", logger.Directory(norm), logger.Endpoint(ep.String()))
	return nil
}

func (s *Store) RegisterBatch(ctx context.Context, dirs []string, ep registry.Endpoint) error {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := s.Register(ctx, d, ep); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Deregister(ctx context.Context, dir string, ep registry.Endpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := registry.NormalizeDir(dir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[norm]; ok {
		delete(s.entries, norm)
		logger.Info("directory deregistered", logger.Directory(norm), logger.Endpoint(ep.String()))
	}
	// Deregistering an absent entry is still success: the caller's intent
	// ("this directory should not be registered") is already satisfied.
	return nil
}

func (s *Store) Close() error { return nil }
