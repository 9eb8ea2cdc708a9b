// Package registry implements the Directory Registry: a durable mapping
// from a normalized absolute directory path to the storage endpoint that
// serves files beneath it.
package registry

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/marmos91/dfs/internal/dfserr"
)

// Endpoint identifies a storage process by host and port.
type Endpoint struct {
	Host string
	Port int
}

// String renders e as "host:port".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// ParseEndpoint parses a "host:port" string produced by String.
func ParseEndpoint(s string) (Endpoint, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing port", s)
	}
	host, portStr := s[:i], s[i+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	return Endpoint{Host: host, Port: port}, nil
}

// DirEntry is one (directory, endpoint) pair as returned by List.
type DirEntry struct {
	Directory string
	Endpoint  Endpoint
}

// Store is the Directory Registry's public operation set.
type Store interface {
	// Lookup resolves the endpoint serving the directory containing filePath.
	// Returns a *dfserr.Error with Code NotFound if no entry matches.
	Lookup(ctx context.Context, filePath string) (Endpoint, error)

	// List returns every (directory, endpoint) pair, sorted by directory.
	List(ctx context.Context) ([]DirEntry, error)

	// Register idempotently associates dir with ep, overwriting any prior value.
	Register(ctx context.Context, dir string, ep Endpoint) error

	// RegisterBatch registers ep for every directory in dirs.
	RegisterBatch(ctx context.Context, dirs []string, ep Endpoint) error

	// Deregister removes dir's entry. It succeeds whether or not dir was present.
	Deregister(ctx context.Context, dir string, ep Endpoint) error

	// Close releases any resources (durable handle) held by the store.
	Close() error
}

// NormalizeDir trims a single trailing slash from dir, except at the
// root, so "/d" and "/d/" key the same registry entry.
func NormalizeDir(dir string) (string, error) {
	if dir == "" {
		return "", dfserr.NewBadRequestError("directory path must not be empty")
	}
	if !strings.HasPrefix(dir, "/") {
		return "", dfserr.NewBadRequestError("directory path must be absolute: " + dir)
	}
	if dir == "/" {
		return dir, nil
	}
	if strings.HasSuffix(dir, "/") {
		dir = strings.TrimSuffix(dir, "/")
		if dir == "" {
			dir = "/"
		}
	}
	return dir, nil
}

// DirOf returns the normalized parent directory of an absolute file path,
// the key a Lookup is performed against.
func DirOf(filePath string) string {
	d := path.Dir(filePath)
	if d != "/" {
		d = strings.TrimSuffix(d, "/")
	}
	return d
}
