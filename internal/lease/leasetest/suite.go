// Package leasetest is a conformance suite shared by every lease.Manager
// implementation.
package leasetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
)

// Clock lets a manager's notion of "now" be advanced deterministically by
// the suite instead of sleeping in real time.
type Clock interface {
	Advance(d time.Duration)
}

// Factory builds a fresh, empty manager with the given lifetime, and a
// Clock controlling it (nil if the implementation only supports wall time).
type Factory func(t *testing.T, lifetime time.Duration) (lease.Manager, Clock)

// Run exercises the lease state machine's laws (revoke idempotence,
// grant-after-expiry, batch-grant atomicity, wrong-id revocation)
// against a manager built by newManager.
func Run(t *testing.T, newManager Factory) {
	t.Run("GrantThenCheckNoID_Conflict", func(t *testing.T) {
		m, _ := newManager(t, time.Minute)
		defer m.Close()

		_, err := m.Grant(context.Background(), "/d/f")
		require.NoError(t, err)

		err = m.Check(context.Background(), "/d/f", nil)
		require.Error(t, err)
		assert.True(t, dfserr.Is(err, dfserr.Conflict))
	})

	t.Run("RevokeIdempotence_Law", func(t *testing.T) {
		m, _ := newManager(t, time.Minute)
		defer m.Close()

		id, err := m.Grant(context.Background(), "/d/f")
		require.NoError(t, err)

		require.NoError(t, m.Revoke(context.Background(), "/d/f", id))
		require.NoError(t, m.Revoke(context.Background(), "/d/f", id))

		require.NoError(t, m.Check(context.Background(), "/d/f", nil))
	})

	t.Run("GrantAfterExpiry_Law", func(t *testing.T) {
		m, clock := newManager(t, time.Minute)
		defer m.Close()
		if clock == nil {
			t.Skip("implementation has no controllable clock")
		}

		id1, err := m.Grant(context.Background(), "/d/f")
		require.NoError(t, err)

		clock.Advance(time.Minute + time.Second)

		id2, err := m.Grant(context.Background(), "/d/f")
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)

		err = m.Check(context.Background(), "/d/f", &id1)
		require.Error(t, err)
		assert.True(t, dfserr.Is(err, dfserr.Conflict))
	})

	t.Run("BatchGrantAtomicity_Law", func(t *testing.T) {
		m, _ := newManager(t, time.Minute)
		defer m.Close()

		_, err := m.Grant(context.Background(), "/d/locked")
		require.NoError(t, err)

		_, err = m.GrantBatch(context.Background(), []string{"/d/a", "/d/b", "/d/locked"})
		require.Error(t, err)
		assert.True(t, dfserr.Is(err, dfserr.Unauthorized))

		require.NoError(t, m.Check(context.Background(), "/d/a", nil))
		require.NoError(t, m.Check(context.Background(), "/d/b", nil))
	})

	t.Run("WrongID_RevokesStaleEntry", func(t *testing.T) {
		m, _ := newManager(t, time.Minute)
		defer m.Close()

		id, err := m.Grant(context.Background(), "/d/f")
		require.NoError(t, err)

		wrong := id + 1
		err = m.Check(context.Background(), "/d/f", &wrong)
		require.Error(t, err)
		assert.True(t, dfserr.Is(err, dfserr.Conflict))

		_, err = m.Grant(context.Background(), "/d/f")
		require.NoError(t, err)
	})

	t.Run("Dump_SortedByPath", func(t *testing.T) {
		m, _ := newManager(t, time.Minute)
		defer m.Close()

		_, err := m.GrantBatch(context.Background(), []string{"/z", "/a", "/m"})
		require.NoError(t, err)

		records, err := m.Dump(context.Background())
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"/a", "/m", "/z"},
			[]string{records[0].Path, records[1].Path, records[2].Path})
	})
}
