package dfsclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/httpapi"
	leasememstore "github.com/marmos91/dfs/internal/lease/memstore"
	"github.com/marmos91/dfs/internal/registry"
	registrymemstore "github.com/marmos91/dfs/internal/registry/memstore"
	"github.com/marmos91/dfs/internal/storage"
	"github.com/marmos91/dfs/internal/storage/localbackend"
	"github.com/marmos91/dfs/pkg/dfsclient"
)

// testEnv wires a single in-process Storage Node behind an httptest server,
// plus in-memory registry and lease stores pre-populated to serve it,
// mirroring the daemons' wiring in cmd/dfs-storaged without the network
// processes.
type testEnv struct {
	t        *testing.T
	server   *httptest.Server
	reg      *registrymemstore.Store
	leases   *leasememstore.Manager
	endpoint registry.Endpoint
}

func newTestEnv(t *testing.T, servedDirs []string) *testEnv {
	t.Helper()

	leases := leasememstore.New(time.Minute)
	backend, err := localbackend.New(localbackend.DefaultConfig(t.TempDir()))
	require.NoError(t, err)

	node := storage.New(backend, leases, servedDirs)

	router := httpapi.NewRouter(5 * time.Second)
	httpapi.MountWildcard(router, http.MethodGet, node.ServeGET)
	httpapi.MountWildcard(router, http.MethodHead, node.ServeHEAD)
	httpapi.MountWildcard(router, http.MethodPut, node.ServePUT)
	httpapi.MountWildcard(router, http.MethodDelete, node.ServeDELETE)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ep, err := registry.ParseEndpoint(strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)

	reg := registrymemstore.New()
	for _, d := range servedDirs {
		require.NoError(t, reg.Register(context.Background(), d, ep))
	}

	return &testEnv{t: t, server: server, reg: reg, leases: leases, endpoint: ep}
}

func (e *testEnv) session(opts ...dfsclient.SessionOption) *dfsclient.Session {
	return dfsclient.NewSession(e.reg, e.leases, opts...)
}

func TestSession_HappyWrite(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, err = h.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	rh, err := sess.Open(ctx, "/d/f", dfsclient.Read)
	require.NoError(t, err)
	data, err := io.ReadAll(rh)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.NotEmpty(t, rh.LastModified())
	require.NoError(t, rh.Close(ctx))
}

func TestSession_AppendToAbsentFile(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Append)
	require.NoError(t, err)
	_, err = h.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))

	rh, err := sess.Open(ctx, "/d/f", dfsclient.Read)
	require.NoError(t, err)
	data, err := io.ReadAll(rh)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	require.NoError(t, rh.Close(ctx))
}

func TestSession_AppendExistingFile(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = h.Write([]byte("abc"))
	require.NoError(t, h.Close(ctx))

	ah, err := sess.Open(ctx, "/d/f", dfsclient.Append)
	require.NoError(t, err)
	_, err = ah.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, ah.Close(ctx))

	rh, err := sess.Open(ctx, "/d/f", dfsclient.Read)
	require.NoError(t, err)
	data, err := io.ReadAll(rh)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))
	require.NoError(t, rh.Close(ctx))
}

func TestSession_LockedReadRejected(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sessA := env.session()
	sessB := env.session()

	wh, err := sessA.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = wh.Write([]byte("partial"))

	_, err = sessB.Open(ctx, "/d/f", dfsclient.Read)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Conflict))

	require.NoError(t, wh.Close(ctx))
}

func TestSession_ExpiredLeaseTakeover(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()

	now := time.Now()
	env.leases.Now = func() time.Time { return now }

	sessA := env.session()
	sessB := env.session()

	whA, err := sessA.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = whA.Write([]byte("from-a"))

	now = now.Add(2 * time.Minute) // past the 1-minute lifetime

	whB, err := sessB.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = whB.Write([]byte("from-b"))
	require.NoError(t, whB.Close(ctx))

	err = whA.Close(ctx)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Unauthorized))
}

func TestSession_CacheValidatedAndInvalidatedByOutOfBandWrite(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Write, dfsclient.WithCache())
	require.NoError(t, err)
	_, _ = h.Write([]byte("x"))
	require.NoError(t, h.Close(ctx))

	g, hit, err := sess.FromCache(ctx, "/d/f")
	require.NoError(t, err)
	require.True(t, hit)
	data, err := io.ReadAll(g)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	// Out-of-band write by another session changes Last-Modified.
	other := env.session()
	oh, err := other.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = oh.Write([]byte("y"))
	require.NoError(t, oh.Close(ctx))

	_, hit, err = sess.FromCache(ctx, "/d/f")
	require.NoError(t, err)
	assert.False(t, hit, "cache entry should have been evicted after an out-of-band write")
}

func TestSession_RevokeNotDoubledOnDoubleClose(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = h.Write([]byte("once"))

	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx), "second Close must be a no-op, not an error")
}

func TestSession_Remove(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = h.Write([]byte("bye"))
	require.NoError(t, h.Close(ctx))

	require.NoError(t, sess.Remove(ctx, "/d/f", nil))

	_, err = sess.Open(ctx, "/d/f", dfsclient.Read)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.NoContent))
}

func TestSession_Rename(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Write)
	require.NoError(t, err)
	_, _ = h.Write([]byte("payload"))
	require.NoError(t, h.Close(ctx))

	require.NoError(t, sess.Rename(ctx, "/d/f", "/d/g"))

	rh, err := sess.Open(ctx, "/d/g", dfsclient.Read)
	require.NoError(t, err)
	data, err := io.ReadAll(rh)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	require.NoError(t, rh.Close(ctx))

	_, err = sess.Open(ctx, "/d/f", dfsclient.Read)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.NoContent))
}

func TestSession_OpenRetriesUntilLeaseReleased(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	blockingID, err := env.leases.Grant(ctx, "/d/f")
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = env.leases.Revoke(context.Background(), "/d/f", blockingID)
		close(released)
	}()

	h, err := sess.Open(ctx, "/d/f", dfsclient.Append,
		dfsclient.WithLockRetry(50, 10*time.Millisecond))
	require.NoError(t, err, "open should succeed once the blocking lease is revoked")
	<-released

	_, err = h.Write([]byte("eventually"))
	require.NoError(t, err)
	require.NoError(t, h.Close(ctx))
}

func TestSession_OpenWithoutRetryFailsFast(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	_, err := env.leases.Grant(ctx, "/d/f")
	require.NoError(t, err)

	_, err = sess.Open(ctx, "/d/f", dfsclient.Write)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.Conflict))
}

func TestSession_OpenUnknownDirectoryFails(t *testing.T) {
	env := newTestEnv(t, []string{"/d"})
	ctx := context.Background()
	sess := env.session()

	_, err := sess.Open(ctx, "/unregistered/f", dfsclient.Read)
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.NotFound))
}
