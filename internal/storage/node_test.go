package storage_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/httpapi"
	leasememstore "github.com/marmos91/dfs/internal/lease/memstore"
	"github.com/marmos91/dfs/internal/storage"
	"github.com/marmos91/dfs/internal/storage/localbackend"
)

func newNodeServer(t *testing.T, servedDirs []string) (*httptest.Server, *leasememstore.Manager) {
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

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, leases
}

func TestNode_NonServablePathRejectedWithoutTouchingDisk(t *testing.T) {
	srv, _ := newNodeServer(t, []string{"/d"})

	resp, err := http.Get(srv.URL + "/e/f")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
}

func TestNode_GETMissingFileReturnsNoContent(t *testing.T) {
	srv, _ := newNodeServer(t, []string{"/d"})

	resp, err := http.Get(srv.URL + "/d/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestNode_PutThenGetRoundTripsAndLastModifiedIsStable(t *testing.T) {
	srv, _ := newNodeServer(t, []string{"/d"})
	client := srv.Client()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/d/f", strings.NewReader("hello"))
	require.NoError(t, err)
	putResp, err := client.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)
	lastModified := putResp.Header.Get("Last-Modified")
	require.NotEmpty(t, lastModified)

	getResp, err := client.Get(srv.URL + "/d/f")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, lastModified, getResp.Header.Get("Last-Modified"))

	headReq, err := http.NewRequest(http.MethodHead, srv.URL+"/d/f", nil)
	require.NoError(t, err)
	headResp, err := client.Do(headReq)
	require.NoError(t, err)
	defer headResp.Body.Close()
	assert.Equal(t, lastModified, headResp.Header.Get("Last-Modified"))
}

func TestNode_PUTWithoutValidLeaseIsUnauthorized(t *testing.T) {
	srv, leases := newNodeServer(t, []string{"/d"})
	client := srv.Client()

	id, err := leases.Grant(t.Context(), "/d/f")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/d/f?lock_id="+strconv.FormatUint(uint64(id)+1, 10), bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNode_DeleteMissingFileReturnsNoContent(t *testing.T) {
	srv, _ := newNodeServer(t, []string{"/d"})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/d/nope", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
