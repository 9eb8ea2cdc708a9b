package endpointcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dfs/internal/registry"
)

func TestCache_StoreAndLookup(t *testing.T) {
	c := New(time.Minute, 0)
	ep := registry.Endpoint{Host: "s1", Port: 7002}

	c.Store("/d", ep)
	got, ok := c.Lookup("/d")
	require.True(t, ok)
	assert.Equal(t, ep, got)
}

func TestCache_MissOnUnknownDir(t *testing.T) {
	c := New(time.Minute, 0)
	_, ok := c.Lookup("/nope")
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, 0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Store("/d", registry.Endpoint{Host: "s1", Port: 7002})
	now = now.Add(20 * time.Millisecond)

	_, ok := c.Lookup("/d")
	assert.False(t, ok, "entry should have expired")
}

func TestCache_Invalidate(t *testing.T) {
	c := New(time.Minute, 0)
	c.Store("/d", registry.Endpoint{Host: "s1", Port: 7002})

	c.Invalidate("/d")
	_, ok := c.Lookup("/d")
	assert.False(t, ok)
}

func TestCache_EvictsLRUAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Store("/a", registry.Endpoint{Host: "a", Port: 1})
	now = now.Add(time.Millisecond)
	c.Store("/b", registry.Endpoint{Host: "b", Port: 2})
	now = now.Add(time.Millisecond)

	// Touch /a so /b becomes the least-recently-used entry.
	_, _ = c.Lookup("/a")
	now = now.Add(time.Millisecond)

	c.Store("/c", registry.Endpoint{Host: "c", Port: 3})

	_, aOK := c.Lookup("/a")
	_, bOK := c.Lookup("/b")
	_, cOK := c.Lookup("/c")
	assert.True(t, aOK)
	assert.False(t, bOK, "/b should have been evicted as least-recently-used")
	assert.True(t, cOK)
}
