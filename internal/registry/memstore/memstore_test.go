package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/registry"
)

func ep(port int) registry.Endpoint {
	return registry.Endpoint{Host: "127.0.0.1", Port: port}
}

func TestLookup_NotFound(t *testing.T) {
	s := New()
	_, err := s.Lookup(context.Background(), "/d/f")
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.NotFound))
}

func TestRegisterThenLookup(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(context.Background(), "/d", ep(9001)))

	got, err := s.Lookup(context.Background(), "/d/f")
	require.NoError(t, err)
	assert.Equal(t, ep(9001), got)
}

func TestRegister_TrailingSlashNormalized(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(context.Background(), "/d/", ep(9001)))

	got, err := s.Lookup(context.Background(), "/d/f")
	require.NoError(t, err)
	assert.Equal(t, ep(9001), got)
}

func TestRegister_Idempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(context.Background(), "/d", ep(9001)))
	require.NoError(t, s.Register(context.Background(), "/d", ep(9002)))

	got, err := s.Lookup(context.Background(), "/d/f")
	require.NoError(t, err)
	assert.Equal(t, ep(9002), got)
}

func TestDeregister_AbsentIsStillSuccess(t *testing.T) {
	s := New()
	err := s.Deregister(context.Background(), "/never-registered", ep(9001))
	require.NoError(t, err)
}

func TestDeregister_RemovesEntry(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(context.Background(), "/d", ep(9001)))
	require.NoError(t, s.Deregister(context.Background(), "/d", ep(9001)))

	_, err := s.Lookup(context.Background(), "/d/f")
	require.Error(t, err)
	assert.True(t, dfserr.Is(err, dfserr.NotFound))
}

func TestRegisterBatch(t *testing.T) {
	s := New()
	require.NoError(t, s.RegisterBatch(context.Background(), []string{"/a", "/b", ""}, ep(9001)))

	got, err := s.Lookup(context.Background(), "/a/f")
	require.NoError(t, err)
	assert.Equal(t, ep(9001), got)

	got, err = s.Lookup(context.Background(), "/b/f")
	require.NoError(t, err)
	assert.Equal(t, ep(9001), got)
}

func TestList_SortedByDirectory(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(context.Background(), "/z", ep(1)))
	require.NoError(t, s.Register(context.Background(), "/a", ep(2)))
	require.NoError(t, s.Register(context.Background(), "/m", ep(3)))

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"/a", "/m", "/z"}, []string{entries[0].Directory, entries[1].Directory, entries[2].Directory})
}

func TestEndpointString_RoundTrip(t *testing.T) {
	e := ep(9001)
	parsed, err := registry.ParseEndpoint(e.String())
	require.NoError(t, err)
	assert.Equal(t, e, parsed)
}
