// Package storagetest is a conformance suite shared by every
// storage.Backend implementation, mirroring the lease manager's
// leasetest package.
package storagetest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/storage"
)

// Factory builds a fresh, empty backend for one test case.
type Factory func(t *testing.T) storage.Backend

// Run exercises the Backend contract against a backend built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("WriteThenReadRoundTrips", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, "/d/f", strings.NewReader("hello")))

		r, err := b.Read(ctx, "/d/f")
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("ReadMissingIsNotFound", func(t *testing.T) {
		b := newBackend(t)

		_, err := b.Read(context.Background(), "/d/nope")
		require.Error(t, err)
		assert.True(t, dfserr.Is(err, dfserr.NotFound))
	})

	t.Run("StatReportsSizeAndModTime", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, "/d/f", strings.NewReader("12345")))

		info, err := b.Stat(ctx, "/d/f")
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
		assert.False(t, info.LastModified.IsZero())
	})

	t.Run("OverwriteReplacesContent", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, "/d/f", strings.NewReader("old")))
		require.NoError(t, b.Write(ctx, "/d/f", strings.NewReader("new")))

		r, err := b.Read(ctx, "/d/f")
		require.NoError(t, err)
		defer r.Close()
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, "/d/f", strings.NewReader("x")))
		require.NoError(t, b.Delete(ctx, "/d/f"))
		require.NoError(t, b.Delete(ctx, "/d/f"))

		exists, err := b.Exists(ctx, "/d/f")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ExistsDistinguishesFiles", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		exists, err := b.Exists(ctx, "/d/f")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, b.Write(ctx, "/d/f", strings.NewReader("x")))
		exists, err = b.Exists(ctx, "/d/f")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
