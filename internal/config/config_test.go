package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileLeavesDefaults(t *testing.T) {
	cfg := DefaultLeaseConfig()
	err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"), "DFS_LEASE", &cfg)
	require.NoError(t, err)

	assert.Equal(t, DefaultLeaseConfig(), cfg)
}

func TestLoad_EmptyPathLeavesDefaults(t *testing.T) {
	cfg := DefaultRegistryConfig()
	require.NoError(t, Load("", "DFS_REGISTRY", &cfg))
	assert.Equal(t, DefaultRegistryConfig(), cfg)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, "lease.yaml", "dbfile: /var/lib/dfs/locks.db\nlock_lifetime: 90s\n")

	cfg := DefaultLeaseConfig()
	require.NoError(t, Load(path, "DFS_LEASE", &cfg))

	assert.Equal(t, "/var/lib/dfs/locks.db", cfg.DBFile)
	assert.Equal(t, 90*time.Second, cfg.LockLifetime)
	// Keys the file never mentions keep their defaults.
	assert.Equal(t, ":7001", cfg.ListenAddr)
}

func TestLoad_JSONDocumentAccepted(t *testing.T) {
	path := writeConfig(t, "registry.json", `{"dbfile": "reg.db", "listen_addr": ":9000"}`)

	cfg := DefaultRegistryConfig()
	require.NoError(t, Load(path, "DFS_REGISTRY", &cfg))

	assert.Equal(t, "reg.db", cfg.DBFile)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoad_UnknownKeysIgnored(t *testing.T) {
	path := writeConfig(t, "lease.yaml", "dbfile: locks.db\nnot_a_real_key: whatever\n")

	cfg := DefaultLeaseConfig()
	require.NoError(t, Load(path, "DFS_LEASE", &cfg))
	assert.Equal(t, "locks.db", cfg.DBFile)
}

func TestLoad_EnvOverridesFileAndDefaults(t *testing.T) {
	path := writeConfig(t, "lease.yaml", "lock_lifetime: 90s\n")
	t.Setenv("DFS_LEASE_LOCK_LIFETIME", "120s")
	t.Setenv("DFS_LEASE_LOGGING_LEVEL", "DEBUG")

	cfg := DefaultLeaseConfig()
	require.NoError(t, Load(path, "DFS_LEASE", &cfg))

	assert.Equal(t, 120*time.Second, cfg.LockLifetime)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoad_ValidationRejectsNonPositiveLifetime(t *testing.T) {
	path := writeConfig(t, "lease.yaml", "lock_lifetime: 0s\n")

	cfg := DefaultLeaseConfig()
	err := Load(path, "DFS_LEASE", &cfg)
	require.Error(t, err)
}

func TestLoad_MalformedDocumentIsAnError(t *testing.T) {
	path := writeConfig(t, "lease.yaml", "dbfile: [unclosed\n")

	cfg := DefaultLeaseConfig()
	err := Load(path, "DFS_LEASE", &cfg)
	require.Error(t, err)
}
