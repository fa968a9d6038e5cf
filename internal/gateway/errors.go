package gateway

import (
	"errors"
	"fmt"
)

// Kind is the closed classification of gateway failures. Downstream logic
// branches on Kind, never on transport details.
type Kind int

const (
	// KindUnavailable is a transport-level failure with no HTTP status:
	// connection refused, DNS failure, timeout.
	KindUnavailable Kind = iota
	// KindNotFound is an HTTP 404.
	KindNotFound
	// KindUnauthorized is an HTTP 401 or 403.
	KindUnauthorized
	// KindBadRequest covers the remaining 4xx statuses.
	KindBadRequest
	// KindServer is any 5xx status.
	KindServer
)

// String returns the kind's stable name.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Message returns the user-facing message for the kind.
func (k Kind) Message() string {
	switch k {
	case KindUnavailable:
		return "server unavailable"
	case KindNotFound:
		return "resource not found"
	case KindUnauthorized:
		return "not authenticated"
	case KindBadRequest:
		return "invalid request"
	default:
		return "server error"
	}
}

// Error is the only error type the gateway returns for failed calls.
type Error struct {
	Kind   Kind
	Status int // zero when no HTTP status was received
	cause  error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Kind.Message(), e.Status)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind.Message(), e.cause)
	}
	return e.Kind.Message()
}

func (e *Error) Unwrap() error { return e.cause }

// transportError wraps a failure that never produced an HTTP status.
func transportError(err error) *Error {
	return &Error{Kind: KindUnavailable, cause: err}
}

// statusError classifies an HTTP status into an Error.
func statusError(status int) *Error {
	e := &Error{Status: status}
	switch {
	case status == 404:
		e.Kind = KindNotFound
	case status == 401 || status == 403:
		e.Kind = KindUnauthorized
	case status >= 500:
		e.Kind = KindServer
	default:
		e.Kind = KindBadRequest
	}
	return e
}

// KindOf extracts the Kind from err. Errors that did not originate in the
// gateway classify as KindUnavailable, matching the treatment of transport
// failures.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == k
}
