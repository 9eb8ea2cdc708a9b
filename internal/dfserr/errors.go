// Package dfserr defines the error categories shared by the Directory
// Registry, Lease Manager, Storage Node and Client Session, and the
// mapping between those categories and HTTP status codes.
package dfserr

import "net/http"

// Code is the category of a coordination-protocol error.
type Code int

const (
	// NotFound: no directory mapping, or file absent on GET/DELETE/HEAD.
	NotFound Code = iota
	// Conflict: a lease exists and the caller is not its owner.
	Conflict
	// Unauthorized: a storage operation was rejected by the lease check, or a grant was refused.
	Unauthorized
	// NotAcceptable: the storage node does not serve this path.
	NotAcceptable
	// BadRequest: a malformed registry or batch-revoke request.
	BadRequest
	// NoContent: the file is absent but the request may legitimately continue (append-open reads).
	NoContent
	// Transport: a network-level failure; not retried by the core.
	Transport
	// Internal: an unexpected failure that must not leak implementation detail to callers.
	Internal
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case NotAcceptable:
		return "not_acceptable"
	case BadRequest:
		return "bad_request"
	case NoContent:
		return "no_content"
	case Transport:
		return "transport"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// HTTPStatus maps c onto the status code used on the wire.
func (c Code) HTTPStatus() int {
	switch c {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case NotAcceptable:
		return http.StatusNotAcceptable
	case BadRequest:
		return http.StatusBadRequest
	case NoContent:
		return http.StatusNoContent
	case Internal:
		return http.StatusInternalServerError
	case Transport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus recovers the nearest Code for a status observed by a
// client, so application code can branch on the same categories the
// servers emit.
func FromHTTPStatus(status int) Code {
	switch status {
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return Conflict
	case http.StatusUnauthorized:
		return Unauthorized
	case http.StatusNotAcceptable:
		return NotAcceptable
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusNoContent:
		return NoContent
	case http.StatusOK:
		return -1 // not an error; callers should not invoke this for 2xx
	default:
		return Transport
	}
}

// Error is the error type returned by every internal component. Handlers
// translate it into the HTTP status table; pkg/dfsclient reconstructs one
// from a response status.
type Error struct {
	Code    Code
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Is reports whether target is a *Error with the same Code, so
// errors.Is(err, dfserr.New(dfserr.Conflict, "")) matches any Conflict
// error. The package-level Is(err, dfserr.Conflict) below is the lighter
// helper for an unwrapped *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds a bare *Error of the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithPath attaches a path to an error for logging/debugging context.
func (e *Error) WithPath(path string) *Error {
	return &Error{Code: e.Code, Message: e.Message, Path: path}
}

// NewNotFoundError builds a NotFound error for path.
func NewNotFoundError(path string) *Error {
	return &Error{Code: NotFound, Message: "no server serves this path", Path: path}
}

// NewConflictError builds a Conflict error for path.
func NewConflictError(path string) *Error {
	return &Error{Code: Conflict, Message: "file is locked", Path: path}
}

// NewUnauthorizedError builds an Unauthorized error for path.
func NewUnauthorizedError(path string) *Error {
	return &Error{Code: Unauthorized, Message: "lease denied", Path: path}
}

// NewNotAcceptableError builds a NotAcceptable error for path.
func NewNotAcceptableError(path string) *Error {
	return &Error{Code: NotAcceptable, Message: "path is not servable", Path: path}
}

// NewBadRequestError builds a BadRequest error with a custom message.
func NewBadRequestError(message string) *Error {
	return &Error{Code: BadRequest, Message: message}
}

// NewNoContentError builds a NoContent error for path.
func NewNoContentError(path string) *Error {
	return &Error{Code: NoContent, Message: "file does not exist", Path: path}
}

// NewTransportError wraps a network-level failure.
func NewTransportError(message string) *Error {
	return &Error{Code: Transport, Message: message}
}

// NewInternalError wraps an unexpected failure. Callers must not leak err's
// message verbatim to external clients; it is intended for server-side logs.
func NewInternalError(message string) *Error {
	return &Error{Code: Internal, Message: message}
}

// Is reports whether err is a *Error carrying code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
