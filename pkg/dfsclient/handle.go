package dfsclient

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/registry"
	"github.com/marmos91/dfs/pkg/spillbuf"
)

// Mode selects an open handle's access pattern.
type Mode int

const (
	// Read opens for reading the file's current contents only.
	Read Mode = iota
	// Write truncates: the buffer starts empty regardless of any
	// existing content.
	Write
	// Append seeds the buffer with the file's current contents (or an
	// empty buffer if it does not yet exist) and positions writes after
	// them.
	Append
)

type openConfig struct {
	cache         bool
	retryAttempts int
	retryDelay    time.Duration
}

// OpenOption configures a single Open call.
type OpenOption func(*openConfig)

// WithCache retains the opened handle in the Session's process-local
// cache, keyed by path, for a later FromCache lookup.
func WithCache() OpenOption {
	return func(c *openConfig) { c.cache = true }
}

// WithLockRetry re-attempts an Open blocked by another client's lease up
// to attempts more times, sleeping delay between tries. Lease acquisition
// failures are retryable by design: the blocking lease either gets
// revoked by its owner's commit or expires on its own.
func WithLockRetry(attempts int, delay time.Duration) OpenOption {
	return func(c *openConfig) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// Handle is a per-open object combining the resolved storage endpoint, an
// optional write lease, and a spillbuf.Buffer holding the locally
// buffered body. Owned exclusively by its opening caller; Close is
// idempotent.
type Handle struct {
	session  *Session
	path     string
	mode     Mode
	endpoint registry.Endpoint

	leaseID *lease.ID
	revoked bool

	buf          *spillbuf.Buffer
	lastModified string

	cached bool
	closed bool
}

// Path returns the handle's target file path.
func (h *Handle) Path() string { return h.path }

// Mode returns the handle's access mode.
func (h *Handle) Mode() Mode { return h.mode }

// LastModified returns the Last-Modified token last observed from the
// storage node, the token FromCache validates against.
func (h *Handle) LastModified() string { return h.lastModified }

// Open resolves path's endpoint, checks for a conflicting lease, fetches
// existing content when the mode needs it, acquires a write lease when
// the mode mutates, and returns a Handle ready for local Read/Write/Seek.
func (s *Session) Open(ctx context.Context, path string, mode Mode, opts ...OpenOption) (*Handle, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	h, err := s.open(ctx, path, mode, cfg)
	for attempt := 1; err != nil && attempt <= cfg.retryAttempts && lockBlocked(err); attempt++ {
		logger.Debug("open blocked by a held lease, retrying",
			logger.Path(path), logger.Attempt(attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.retryDelay):
		}
		h, err = s.open(ctx, path, mode, cfg)
	}
	return h, err
}

// lockBlocked reports whether err is the kind of lease-acquisition
// failure that a later attempt may clear.
func lockBlocked(err error) bool {
	return dfserr.Is(err, dfserr.Conflict) || dfserr.Is(err, dfserr.Unauthorized)
}

func (s *Session) open(ctx context.Context, path string, mode Mode, cfg openConfig) (*Handle, error) {
	ep, err := s.resolveEndpoint(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := s.leases.Check(ctx, path, nil); err != nil {
		return nil, err
	}

	h := &Handle{
		session:  s,
		path:     path,
		mode:     mode,
		endpoint: ep,
		buf:      spillbuf.New(s.maxSize),
	}

	client := s.storageClientFor(ep)

	// Per the write-open data flow, a lease is requested before the body
	// is fetched: the grant precedes the read an append-open performs, and
	// that read carries the fresh lease id so the storage node's own lease
	// check validates (and refreshes) it rather than seeing a foreign lock.
	if mode == Write || mode == Append {
		id, err := s.leases.Grant(ctx, path)
		if err != nil {
			return nil, err
		}
		h.leaseID = &id
	}

	if mode != Write {
		data, lastModified, getErr := client.Get(ctx, path, h.leaseID)
		switch {
		case getErr == nil:
			if _, err := h.buf.Write(data); err != nil {
				h.releaseLease(ctx)
				return nil, err
			}
			h.lastModified = lastModified
			if mode == Read {
				if _, err := h.buf.Seek(0, io.SeekStart); err != nil {
					return nil, err
				}
			}
		case dfserr.Is(getErr, dfserr.NoContent) && mode == Append:
			// Append-open of an absent file starts from an empty buffer.
		default:
			h.releaseLease(ctx)
			return nil, getErr
		}
	}

	if cfg.cache {
		h.cached = true
		s.cache.store(path, h)
	}

	return h, nil
}

// Read reads from the handle's local buffer at its current position. It
// never contacts any server; the buffer was seeded at Open.
func (h *Handle) Read(p []byte) (int, error) {
	return h.buf.Read(p)
}

// Write appends to the handle's local buffer at its current position. It
// never contacts any server; the write is visible to a server only after
// Flush or Close.
func (h *Handle) Write(p []byte) (int, error) {
	return h.buf.Write(p)
}

// Seek repositions the handle's local buffer.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	return h.buf.Seek(offset, whence)
}

// Flush commits the buffered body to the storage node: for a write or
// append handle it seeks to the start, PUTs the full body with the held
// lease id, records the returned Last-Modified, and revokes the lease
// exactly once regardless of how many times Flush is called. A no-op for
// a Read handle.
func (h *Handle) Flush(ctx context.Context) error {
	if h.mode == Read {
		return nil
	}

	r, err := h.buf.Reader()
	if err != nil {
		return err
	}

	client := h.session.storageClientFor(h.endpoint)
	lastModified, err := client.Put(ctx, h.path, r, h.leaseID)
	if err != nil {
		return err
	}
	h.lastModified = lastModified

	h.releaseLease(ctx)
	return nil
}

// releaseLease revokes the handle's lease if one is still held, at most
// once per handle. Also used on the Open error path so a failed open does
// not pin the file until the lease expires on its own.
func (h *Handle) releaseLease(ctx context.Context) {
	if h.leaseID != nil && !h.revoked {
		_ = h.session.leases.Revoke(ctx, h.path, *h.leaseID)
		h.revoked = true
	}
}

// Close commits (Flush) and releases local resources, except when the
// handle was opened WithCache: in that case its buffer is kept alive for
// a later FromCache hit, repositioned at offset 0, with its lease already
// released by Flush. Safe to call more than once.
func (h *Handle) Close(ctx context.Context) error {
	if h.closed {
		return nil
	}

	if err := h.Flush(ctx); err != nil {
		return err
	}
	h.closed = true

	if h.cached {
		_, err := h.buf.Seek(0, io.SeekStart)
		return err
	}
	return h.buf.Close()
}
