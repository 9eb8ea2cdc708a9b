// Package lease implements the Lease Manager: a per-file-path map enforcing
// single-writer semantics via time-limited, bearer-token leases.
package lease

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// ID is a lease identifier, drawn uniformly from the full 64-bit space
// so collision under churn is not a practical concern.
type ID uint64

// Lease is one file path's current grant.
type Lease struct {
	ID         ID
	GrantedAt  time.Time
	LastUsedAt time.Time
}

// Expired reports whether the lease is no longer valid at instant now,
// given lifetime.
func (l Lease) Expired(now time.Time, lifetime time.Duration) bool {
	return now.Sub(l.LastUsedAt) > lifetime
}

// Record is one entry of Dump's output.
type Record struct {
	Path       string
	GrantedAt  time.Time
	LastUsedAt time.Time
}

// Manager is the Lease Manager's public operation set.
//
// Check's bundled check-and-refresh semantics are intentional: a
// successful validation with a matching lease id also advances
// LastUsedAt, saving a separate "touch" round trip at the cost of Check
// not being a pure read.
type Manager interface {
	// Check validates path's lease. id == nil means "is this file locked
	// at all" (used by a would-be reader); a non-nil id means "I believe I
	// hold this lease". Returns nil (OK) or a *dfserr.Error with Code
	// Conflict.
	Check(ctx context.Context, path string, id *ID) error

	// Grant creates a fresh lease on path if none exists or the existing
	// one has expired. Returns a *dfserr.Error with Code Unauthorized if a
	// valid lease is already held.
	Grant(ctx context.Context, path string) (ID, error)

	// GrantBatch grants a lease on every path in order; on the first
	// failure it revokes everything granted so far in this call and
	// returns Unauthorized.
	GrantBatch(ctx context.Context, paths []string) (map[string]ID, error)

	// Revoke deletes path's lease if its id matches. A missing lease or a
	// mismatched id is not an error, making client clean-up idempotent;
	// only a cancelled context or a storage or transport failure is.
	Revoke(ctx context.Context, path string, id ID) error

	// RevokeBatch revokes each (paths[i], ids[i]) pair independently.
	RevokeBatch(ctx context.Context, paths []string, ids []ID) error

	// Dump lists every live lease, sorted by path, for operator visibility.
	Dump(ctx context.Context) ([]Record, error)

	// Close releases any resources held by the manager.
	Close() error
}

// NewID draws a lease id uniformly from the full 64-bit space using a
// cryptographically secure source.
func NewID() (ID, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return ID(binary.BigEndian.Uint64(buf[:])), nil
}
