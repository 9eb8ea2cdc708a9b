// Package storage implements the Storage Node: a lease-gated, whole-file
// content store served over HTTP. Unlike a content-addressed store, a
// file's identity here is its path; transfers are always whole files (no
// partial writes, no ranges, no dedup).
package storage

import (
	"context"
	"io"
	"time"
)

// Backend is the storage-agnostic interface every file backend
// (localbackend, s3backend) satisfies.
// The Node trusts the Lease Manager for write authorization; a Backend
// only ever sees path-addressed whole-file reads and writes.
type Backend interface {
	// Read opens the file at path for sequential reading. Returns a
	// *dfserr.Error with Code NotFound if it does not exist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Stat returns the file's size and last-modified time without reading
	// its content. Returns a *dfserr.Error with Code NotFound if the file
	// does not exist, or NotAcceptable if path names a directory.
	Stat(ctx context.Context, path string) (Info, error)

	// Write stores data as path's complete, new content, replacing any
	// prior content. Implementations must make this atomic: a reader
	// must never observe a partially written file.
	Write(ctx context.Context, path string, data io.Reader) error

	// Delete removes path. It is idempotent: deleting a file that does
	// not exist returns nil.
	Delete(ctx context.Context, path string) error

	// Exists reports whether path names a regular file.
	Exists(ctx context.Context, path string) (bool, error)
}

// Info describes a stored file's metadata as exposed over HTTP (the
// storage node's HEAD/GET response headers).
type Info struct {
	Size         int64
	LastModified time.Time
}
