// Package badgerstore is the durable Directory Registry backing:
// registrations must survive a restart, so the directory map lives in a
// BadgerDB database rather than process memory.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/registry"
)

const dirKeyPrefix = "dir:"

func dirKey(dir string) []byte {
	return []byte(dirKeyPrefix + dir)
}

func dirFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), dirKeyPrefix)
}

// Store is a BadgerDB-backed registry.Store.
type Store struct {
	db *badger.DB
}

var _ registry.Store = (*Store)(nil)

// Open opens (creating if necessary) the BadgerDB database at dbPath.
func Open(dbPath string) (*Store, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open registry db %q: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Lookup(ctx context.Context, filePath string) (registry.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return registry.Endpoint{}, err
	}
	dir := registry.DirOf(filePath)

	var ep registry.Endpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dirKey(dir))
		if err == badger.ErrKeyNotFound {
			return dfserr.NewNotFoundError(filePath)
		}
		if err != nil {
			return fmt.Errorf("lookup %q: %w", dir, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ep)
		})
	})
	if err != nil {
		return registry.Endpoint{}, err
	}
	return ep, nil
}

func (s *Store) List(ctx context.Context) ([]registry.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []registry.DirEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(dirKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			dir := dirFromKey(item.Key())
			var ep registry.Endpoint
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &ep)
			}); err != nil {
				return fmt.Errorf("decode entry %q: %w", dir, err)
			}
			out = append(out, registry.DirEntry{Directory: dir, Endpoint: ep})
		}
		return nil
	})
	if err != nil {
		return nil, err
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
	val, err := json.Marshal(ep)
	if err != nil {
		return dfserr.NewInternalError("encode endpoint: " + err.Error())
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dirKey(norm), val)
	})
	if err != nil {
		return fmt.Errorf("register %q: %w", norm, err)
	}
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

	err = s.db.Update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(dirKey(norm))
		if getErr == badger.ErrKeyNotFound {
			// Already absent: the caller's intent is satisfied either way.
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return txn.Delete(dirKey(norm))
	})
	if err != nil {
		return fmt.Errorf("deregister %q: %w", norm, err)
	}
	logger.Info("directory deregistered", logger.Directory(norm), logger.Endpoint(ep.String()))
	return nil
}
