// Package localbackend is a filesystem-backed storage.Backend. Files are
// stored under a base directory mirroring the served path hierarchy.
package localbackend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/storage"
)

// Backend is a filesystem-backed storage.Backend rooted at a base
// directory.
type Backend struct {
	basePath string
	fileMode os.FileMode
	dirMode  os.FileMode
}

var _ storage.Backend = (*Backend)(nil)

// Config configures a Backend.
type Config struct {
	// BasePath is the root directory files are stored under.
	BasePath string

	// CreateDir creates BasePath if it doesn't already exist. Default true.
	CreateDir bool

	FileMode os.FileMode
	DirMode  os.FileMode
}

// DefaultConfig returns sane defaults for BasePath.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		FileMode:  0o644,
		DirMode:   0o755,
	}
}

// New creates a filesystem-backed Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.BasePath == "" {
		return nil, dfserr.NewBadRequestError("base path is required")
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}
	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, dfserr.NewBadRequestError("base path is not a directory")
	}
	return &Backend{basePath: cfg.BasePath, fileMode: cfg.FileMode, dirMode: cfg.DirMode}, nil
}

// resolve maps a served path to its on-disk location, rejecting any
// attempt to escape the base directory.
func (b *Backend) resolve(path string) (string, error) {
	clean := filepath.Join(b.basePath, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if !strings.HasPrefix(clean, filepath.Clean(b.basePath)+string(os.PathSeparator)) && clean != filepath.Clean(b.basePath) {
		return "", dfserr.NewBadRequestError("path escapes storage root: " + path)
	}
	return clean, nil
}

func (b *Backend) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dfserr.NewNotFoundError(path)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, dfserr.NewNotAcceptableError(path)
	}
	return f, nil
}

func (b *Backend) Stat(ctx context.Context, path string) (storage.Info, error) {
	if err := ctx.Err(); err != nil {
		return storage.Info{}, err
	}
	full, err := b.resolve(path)
	if err != nil {
		return storage.Info{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.Info{}, dfserr.NewNotFoundError(path)
		}
		return storage.Info{}, err
	}
	if info.IsDir() {
		return storage.Info{}, dfserr.NewNotAcceptableError(path)
	}
	return storage.Info{Size: info.Size(), LastModified: info.ModTime()}, nil
}

// Write stores data as path's complete new content. It writes to a
// sibling temp file and renames into place so concurrent readers never
// observe a partial file.
func (b *Backend) Write(ctx context.Context, path string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), b.dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".dfs-upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, b.fileMode); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
