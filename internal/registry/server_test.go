package registry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/httpapi"
	"github.com/marmos91/dfs/internal/registry"
	"github.com/marmos91/dfs/internal/registry/memstore"
)

func newRegistryServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := registry.NewServer(memstore.New())
	router := httpapi.NewRouter(5 * time.Second)
	httpapi.MountWildcard(router, http.MethodGet, server.ServeGET)
	httpapi.MountWildcard(router, http.MethodPost, server.ServePOST)
	httpapi.MountWildcard(router, http.MethodDelete, server.ServeDELETE)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postForm(t *testing.T, client *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.Post(target, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp
}

func TestServer_RegisterThenLookup(t *testing.T) {
	srv := newRegistryServer(t)
	client := srv.Client()

	resp := postForm(t, client, srv.URL+"/d", url.Values{"srv": {"node1:7002"}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lookupResp, err := client.Get(srv.URL + "/d/f")
	require.NoError(t, err)
	defer lookupResp.Body.Close()
	require.Equal(t, http.StatusOK, lookupResp.StatusCode)

	body, err := io.ReadAll(lookupResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "node1:7002", string(body))
}

func TestServer_LookupUnknownDirectoryIs404(t *testing.T) {
	srv := newRegistryServer(t)

	resp, err := srv.Client().Get(srv.URL + "/nowhere/f")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RegisterWithoutSrvIs400(t *testing.T) {
	srv := newRegistryServer(t)

	resp := postForm(t, srv.Client(), srv.URL+"/d", url.Values{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_BatchRegisterAndList(t *testing.T) {
	srv := newRegistryServer(t)
	client := srv.Client()

	resp := postForm(t, client, srv.URL+"/", url.Values{
		"srv":  {"node1:7002"},
		"dirs": {"/b\n/a\n/c/"},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	listResp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	defer listResp.Body.Close()
	body, err := io.ReadAll(listResp.Body)
	require.NoError(t, err)

	// Sorted by directory, with /c/ normalized to /c.
	assert.Equal(t, "/a=node1:7002\n/b=node1:7002\n/c=node1:7002\n", string(body))
}

func TestServer_DeregisterAbsentEntryStillSucceeds(t *testing.T) {
	srv := newRegistryServer(t)

	form := url.Values{"srv": {"node1:7002"}}
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/never-registered", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ReRegisterOverwrites(t *testing.T) {
	srv := newRegistryServer(t)
	client := srv.Client()

	resp := postForm(t, client, srv.URL+"/d", url.Values{"srv": {"node1:7002"}})
	resp.Body.Close()
	resp = postForm(t, client, srv.URL+"/d", url.Values{"srv": {"node2:7002"}})
	resp.Body.Close()

	lookupResp, err := client.Get(srv.URL + "/d/f")
	require.NoError(t, err)
	defer lookupResp.Body.Close()
	body, err := io.ReadAll(lookupResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "node2:7002", string(body))
}
