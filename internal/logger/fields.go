package logger

import "log/slog"

// Standard field keys, kept consistent across the three daemons and the
// client library so log aggregation can correlate a request across
// service boundaries.
const (
	KeyPath        = "path"
	KeyDirectory   = "directory"
	KeyEndpoint    = "endpoint"
	KeyVerb        = "verb"
	KeyStatus      = "status"
	KeyLeaseID     = "lease_id"
	KeyBatchID     = "batch_id"
	KeyDurationMs  = "duration_ms"
	KeyError       = "error"
	KeyClientIP    = "client_ip"
	KeyRequestID   = "request_id"
	KeyAttempt     = "attempt"
	KeyBytes       = "bytes"
	KeyLastMod     = "last_modified"
	KeyBackend     = "backend"
	KeyCacheHit    = "cache_hit"
)

// Path returns a slog.Attr for a file or directory path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Directory returns a slog.Attr for a registry directory key.
func Directory(d string) slog.Attr { return slog.String(KeyDirectory, d) }

// Endpoint returns a slog.Attr for a storage endpoint (host:port).
func Endpoint(e string) slog.Attr { return slog.String(KeyEndpoint, e) }

// Verb returns a slog.Attr for the HTTP verb handled.
func Verb(v string) slog.Attr { return slog.String(KeyVerb, v) }

// Status returns a slog.Attr for the HTTP status code returned.
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// LeaseID returns a slog.Attr for a lease identifier.
func LeaseID(id uint64) slog.Attr { return slog.Uint64(KeyLeaseID, id) }

// BatchID returns a slog.Attr correlating a batch grant/revoke call.
func BatchID(id string) slog.Attr { return slog.String(KeyBatchID, id) }

// DurationMs returns a slog.Attr for an operation's duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ClientIP returns a slog.Attr for the remote client's address.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// RequestID returns a slog.Attr for the chi request id.
func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

// Attempt returns a slog.Attr for a retry attempt counter.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// LastModified returns a slog.Attr for the Last-Modified token.
func LastModified(v string) slog.Attr { return slog.String(KeyLastMod, v) }

// Backend returns a slog.Attr naming the storage backend (local, s3).
func Backend(name string) slog.Attr { return slog.String(KeyBackend, name) }

// CacheHit returns a slog.Attr indicating whether a client cache lookup hit.
func CacheHit(hit bool) slog.Attr { return slog.Bool(KeyCacheHit, hit) }
