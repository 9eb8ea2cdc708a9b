// Package badgerstore is the durable Lease Manager backing. Leases must
// survive a crash so that a crash plus re-grant cannot produce two live
// leases for the same path; BadgerDB's WAL plus fsync-on-commit gives
// that guarantee.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
	"github.com/marmos91/dfs/internal/logger"
)

const leaseKeyPrefix = "lease:"

func leaseKey(path string) []byte {
	return []byte(leaseKeyPrefix + path)
}

func pathFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), leaseKeyPrefix)
}

type record struct {
	ID         lease.ID  `json:"id"`
	GrantedAt  time.Time `json:"granted_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

func (r record) toLease() lease.Lease {
	return lease.Lease{ID: r.ID, GrantedAt: r.GrantedAt, LastUsedAt: r.LastUsedAt}
}

// Manager is a BadgerDB-backed lease.Manager. Operations additionally take
// an in-process mutex: BadgerDB transactions alone serialize writes to a
// single key, but GrantBatch's rollback semantics need a wider critical
// section than a single key touches.
type Manager struct {
	db       *badger.DB
	mu       sync.Mutex
	lifetime time.Duration

	Now func() time.Time
}

var _ lease.Manager = (*Manager)(nil)

// Open opens (creating if necessary) the BadgerDB database at dbPath.
// Expired leases already on disk are left in place; they are lazily
// reaped the next time their path is touched.
func Open(dbPath string, lifetime time.Duration) (*Manager, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open lease db %q: %w", dbPath, err)
	}
	return &Manager{db: db, lifetime: lifetime, Now: time.Now}, nil
}

// SetLifetime updates the lease lifetime applied to future expiry checks.
func (m *Manager) SetLifetime(lifetime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifetime = lifetime
}

func (m *Manager) Close() error { return m.db.Close() }

func (m *Manager) getRecord(txn *badger.Txn, path string) (record, bool, error) {
	item, err := txn.Get(leaseKey(path))
	if err == badger.ErrKeyNotFound {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, err
	}
	var r record
	err = item.Value(func(val []byte) error { return json.Unmarshal(val, &r) })
	return r, true, err
}

func (m *Manager) setRecord(txn *badger.Txn, path string, r record) error {
	val, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return txn.Set(leaseKey(path), val)
}

func (m *Manager) deleteRecord(txn *badger.Txn, path string) error {
	err := txn.Delete(leaseKey(path))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	return err
}

func (m *Manager) Check(ctx context.Context, path string, id *lease.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	var result error

	err := m.db.Update(func(txn *badger.Txn) error {
		r, exists, err := m.getRecord(txn, path)
		if err != nil {
			return err
		}
		l := r.toLease()

		switch {
		case !exists && id == nil:
			result = nil
			return nil

		case exists && id != nil && *id == l.ID && !l.Expired(now, m.lifetime):
			r.LastUsedAt = now
			result = nil
			return m.setRecord(txn, path, r)

		case exists && id != nil && *id != l.ID:
			result = dfserr.NewConflictError(path)
			return m.deleteRecord(txn, path)

		case exists && id == nil && l.Expired(now, m.lifetime):
			result = nil
			return m.deleteRecord(txn, path)

		case exists && id == nil && !l.Expired(now, m.lifetime):
			result = dfserr.NewConflictError(path)
			return nil

		case exists && id != nil && *id == l.ID && l.Expired(now, m.lifetime):
			result = dfserr.NewConflictError(path)
			return m.deleteRecord(txn, path)

		default: // !exists && id != nil
			result = dfserr.NewConflictError(path)
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("check %q: %w", path, err)
	}
	return result
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
	var grantErr error
	var newID lease.ID

	err := m.db.Update(func(txn *badger.Txn) error {
		r, exists, err := m.getRecord(txn, path)
		if err != nil {
			return err
		}
		if exists && !r.toLease().Expired(now, m.lifetime) {
			grantErr = dfserr.NewUnauthorizedError(path)
			return nil
		}

		id, err := lease.NewID()
		if err != nil {
			return err
		}
		newID = id
		return m.setRecord(txn, path, record{ID: id, GrantedAt: now, LastUsedAt: now})
	})
	if err != nil {
		return 0, dfserr.NewInternalError("grant " + path + ": " + err.Error())
	}
	if grantErr != nil {
		return 0, grantErr
	}
	logger.Info("lease granted", logger.Path(path), logger.LeaseID(uint64(newID)))
	return newID, nil
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
				_ = m.revokeLocked(grantedPath, grantedID)
			}
			return nil, err
		}
		granted[p] = id
	}
	return granted, nil
}

func (m *Manager) revokeLocked(path string, id lease.ID) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		r, exists, err := m.getRecord(txn, path)
		if err != nil {
			return err
		}
		if !exists || r.ID != id {
			return nil
		}
		return m.deleteRecord(txn, path)
	})
	if err == nil {
		logger.Info("lease revoked", logger.Path(path), logger.LeaseID(uint64(id)))
	}
	return err
}

func (m *Manager) Revoke(ctx context.Context, path string, id lease.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.revokeLocked(path, id); err != nil {
		return fmt.Errorf("revoke %q: %w", path, err)
	}
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

	var out []lease.Record
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(leaseKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := pathFromKey(item.Key())
			var r record
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
				return fmt.Errorf("decode lease %q: %w", path, err)
			}
			out = append(out, lease.Record{Path: path, GrantedAt: r.GrantedAt, LastUsedAt: r.LastUsedAt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
