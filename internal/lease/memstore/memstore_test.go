package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
)

func newManager(t *testing.T, lifetime time.Duration) (*Manager, *fakeClock) {
	t.Helper()
	m := New(lifetime)
	clock := &fakeClock{t: time.Now()}
	m.Now = clock.Now
	return m, clock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time   { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCheck_NoLeaseNoID_OK(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	require.NoError(t, m.Check(context.Background(), "/d/f", nil))
}

func TestCheck_NoLeaseWithID_Conflict(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	id := lease.ID(42)
	err := m.Check(context.Background(), "/d/f", &id)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Conflict))
}

func TestGrant_ThenCheckWithoutID_Conflict(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	_, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	err = m.Check(context.Background(), "/d/f", nil)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Conflict))
}

func TestGrant_WhileValid_Unauthorized(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	_, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	_, err = m.Grant(context.Background(), "/d/f")
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Unauthorized))
}

func TestCheck_MatchingID_OKAndRefreshes(t *testing.T) {
	m, clock := newManager(t, time.Minute)
	id, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.NoError(t, m.Check(context.Background(), "/d/f", &id))

	// Advancing another 30s (60s total since grant, but only 30s since the
	// refreshing check) must still be valid.
	clock.Advance(30 * time.Second)
	require.NoError(t, m.Check(context.Background(), "/d/f", &id))
}

func TestCheck_WrongID_RevokesAndConflicts(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	id, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	wrong := id + 1
	err = m.Check(context.Background(), "/d/f", &wrong)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Conflict))

	// The stale entry was revoked, so a fresh grant now succeeds.
	_, err = m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)
}

func TestGrantAfterExpiry_Law(t *testing.T) {
	m, clock := newManager(t, time.Minute)
	id1, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	clock.Advance(time.Minute + time.Second)

	id2, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	err = m.Check(context.Background(), "/d/f", &id1)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Conflict))
}

func TestRevoke_Idempotent_Law(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	id, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), "/d/f", id))
	require.NoError(t, m.Revoke(context.Background(), "/d/f", id))

	require.NoError(t, m.Check(context.Background(), "/d/f", nil))
}

func TestRevoke_WrongIDIsNoop(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	id, err := m.Grant(context.Background(), "/d/f")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(context.Background(), "/d/f", id+1))

	// Original lease is untouched.
	err = m.Check(context.Background(), "/d/f", &id)
	require.NoError(t, err)
}

func TestGrantBatch_AllOrNothing(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	_, err := m.Grant(context.Background(), "/d/locked")
	require.NoError(t, err)

	_, err = m.GrantBatch(context.Background(), []string{"/d/a", "/d/b", "/d/locked"})
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Unauthorized))

	// /d/a and /d/b must not remain leased after the rollback.
	require.NoError(t, m.Check(context.Background(), "/d/a", nil))
	require.NoError(t, m.Check(context.Background(), "/d/b", nil))
}

func TestGrantBatch_Success(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	granted, err := m.GrantBatch(context.Background(), []string{"/d/a", "/d/b"})
	require.NoError(t, err)
	require.Len(t, granted, 2)

	idA := granted["/d/a"]
	require.NoError(t, m.Check(context.Background(), "/d/a", &idA))
}

func TestDump_SortedByPath(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	_, err := m.GrantBatch(context.Background(), []string{"/z", "/a", "/m"})
	require.NoError(t, err)

	records, err := m.Dump(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"/a", "/m", "/z"}, []string{records[0].Path, records[1].Path, records[2].Path})
}

func TestRevokeBatch_MismatchedLengths(t *testing.T) {
	m, _ := newManager(t, time.Minute)
	err := m.RevokeBatch(context.Background(), []string{"/a", "/b"}, []lease.ID{1})
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.BadRequest))
}
