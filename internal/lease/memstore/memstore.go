// Package memstore is an in-memory Lease Manager, used in tests and
// single-process development runs. Durability across restarts, required
// in production, is provided by the sibling badgerstore package instead.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
	"github.com/marmos91/dfs/internal/logger"
)

// Manager is a mutex-guarded map[path]lease.Lease.
type Manager struct {
	mu       sync.Mutex
	leases   map[string]lease.Lease
	lifetime time.Duration

	// Now returns the current time; overridable in tests so expiry can be
	// exercised without sleeping.
	Now func() time.Time
}

var _ lease.Manager = (*Manager)(nil)

// New returns a Manager whose leases expire lifetime after their last use.
func New(lifetime time.Duration) *Manager {
	return &Manager{
		leases:   make(map[string]lease.Lease),
		lifetime: lifetime,
		Now:      time.Now,
	}
}

func (m *Manager) Check(ctx context.Context, path string, id *lease.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	l, exists := m.leases[path]

	switch {
	case !exists && id == nil:
		return nil

	case exists && id != nil && *id == l.ID && !l.Expired(now, m.lifetime):
		l.LastUsedAt = now
		m.leases[path] = l
		return nil

	case exists && id != nil && *id != l.ID:
		delete(m.leases, path)
		logger.Info("lease conflict: wrong id, revoking", logger.Path(path))
		return dfserr.NewConflictError(path)

	case exists && id == nil && l.Expired(now, m.lifetime):
		delete(m.leases, path)
		return nil

	case exists && id == nil && !l.Expired(now, m.lifetime):
		return dfserr.NewConflictError(path)

	case exists && id != nil && *id == l.ID && l.Expired(now, m.lifetime):
		// Presented the right id, but the lease itself has expired:
		// caller is out of sync with reality either way.
		delete(m.leases, path)
		return dfserr.NewConflictError(path)

	case !exists && id != nil:
		return dfserr.NewConflictError(path)

	default:
		return dfserr.NewConflictError(path)
	}
}

func (m *Manager) Grant(ctx context.Context, path string) (lease.ID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grantLocked(path)
}

func (m *Manager) grantLocked(path string) (lease.ID, error) {
	now := m.Now()
	if l, exists := m.leases[path]; exists {
		if !l.Expired(now, m.lifetime) {
			return 0, dfserr.NewUnauthorizedError(path)
		}
		delete(m.leases, path)
	}

	id, err := lease.NewID()
	if err != nil {
		return 0, dfserr.NewInternalError("generate lease id: " + err.Error())
	}
	m.leases[path] = lease.Lease{ID: id, GrantedAt: now, LastUsedAt: now}
	logger.Info("lease granted", logger.Path(path), logger.LeaseID(uint64(id)))
	return id, nil
}

func (m *Manager) GrantBatch(ctx context.Context, paths []string) (map[string]lease.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	granted := make(map[string]lease.ID, len(paths))
	for _, p := range paths {
		id, err := m.grantLocked(p)
		if err != nil {
			for grantedPath, grantedID := range granted {
				m.revokeLocked(grantedPath, grantedID)
			}
			return nil, err
		}
		granted[p] = id
	}
	return granted, nil
}

func (m *Manager) revokeLocked(path string, id lease.ID) {
	if l, ok := m.leases[path]; ok && l.ID == id {
		delete(m.leases, path)
		logger.Info("lease revoked", logger.Path(path), logger.LeaseID(uint64(id)))
	}
}

func (m *Manager) Revoke(ctx context.Context, path string, id lease.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeLocked(path, id)
	return nil
}

func (m *Manager) RevokeBatch(ctx context.Context, paths []string, ids []lease.ID) error {
	if len(paths) != len(ids) {
		return dfserr.NewBadRequestError("filepaths and lock_ids must have equal length")
	}
	for i, p := range paths {
		if err := m.Revoke(ctx, p, ids[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Dump(ctx context.Context) ([]lease.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]lease.Record, 0, len(m.leases))
	for path, l := range m.leases {
		out = append(out, lease.Record{Path: path, GrantedAt: l.GrantedAt, LastUsedAt: l.LastUsedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// SetLifetime updates the lease lifetime applied to future expiry checks.
// Existing leases' expiry is recomputed against the new lifetime on their
// next access; it is not retroactively applied.
func (m *Manager) SetLifetime(lifetime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifetime = lifetime
}

func (m *Manager) Close() error { return nil }
