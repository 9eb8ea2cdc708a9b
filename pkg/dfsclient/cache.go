package dfsclient

import (
	"context"
	"io"

	"github.com/marmos91/dfs/internal/lease"
)

// FromCache looks up path in the process-local handle cache and, if
// present, validates it with a HEAD against its origin storage node.
// A Last-Modified match returns the handle
// positioned at offset 0; any mismatch (including a transport failure)
// evicts the entry and reports a miss, so the cache never serves a stale
// body.
func (s *Session) FromCache(ctx context.Context, path string) (*Handle, bool, error) {
	h, ok := s.cache.lookup(path)
	if !ok {
		return nil, false, nil
	}

	client := s.storageClientFor(h.endpoint)
	lastModified, err := client.Head(ctx, path, nil)
	if err != nil || lastModified != h.lastModified {
		s.cache.evict(path)
		return nil, false, nil
	}

	if _, err := h.buf.Seek(0, io.SeekStart); err != nil {
		return nil, false, err
	}
	return h, true, nil
}

// Remove is the out-of-band delete helper: it resolves path's endpoint
// and sends a DELETE, optionally carrying a held lease id.
func (s *Session) Remove(ctx context.Context, path string, leaseID *lease.ID) error {
	ep, err := s.resolveEndpoint(ctx, path)
	if err != nil {
		return err
	}
	return s.storageClientFor(ep).Delete(ctx, path, leaseID)
}

// Rename copies path's contents to newPath and deletes path, using a
// lease acquired on path for the delete. This is not atomic across the
// two files: a crash between the write and the delete leaves both
// present.
func (s *Session) Rename(ctx context.Context, path, newPath string) error {
	rh, err := s.Open(ctx, path, Read)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rh.buf)
	if err != nil {
		_ = rh.Close(ctx)
		return err
	}
	if err := rh.Close(ctx); err != nil {
		return err
	}

	wh, err := s.Open(ctx, newPath, Write)
	if err != nil {
		return err
	}
	if _, err := wh.Write(data); err != nil {
		_ = wh.Close(ctx)
		return err
	}
	if err := wh.Close(ctx); err != nil {
		return err
	}

	id, err := s.leases.Grant(ctx, path)
	if err != nil {
		return err
	}
	if err := s.Remove(ctx, path, &id); err != nil {
		_ = s.leases.Revoke(ctx, path, id)
		return err
	}
	return s.leases.Revoke(ctx, path, id)
}
