package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Error taxonomy shared by every HTTP client
	ErrTransport    = fmt.Errorf("transport error")
	ErrUpstream     = fmt.Errorf("upstream error")
	ErrAuthRequired = fmt.Errorf("authentication required")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// Authorization errors
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrInvalidToken = fmt.Errorf("invalid token")

	// Domain errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrContentNotFound    = fmt.Errorf("content not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrRecordNotFound     = fmt.Errorf("watch status record not found")
	ErrClosed             = fmt.Errorf("closed")
	ErrBusy               = fmt.Errorf("status is still loading")

	// Input validation errors
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrInvalidStatus      = fmt.Errorf("invalid watch status")
	ErrInvalidContentType = fmt.Errorf("invalid content type")
	ErrMissingArgument    = fmt.Errorf("missing required argument")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
)

// TransportError reports a request that never produced an HTTP response: DNS, refused
// connections, resets and client-side timeouts.
type TransportError struct {
	Op  string // e.g. "GET"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches [ErrTransport], and [ErrTimeout] when the underlying failure was a deadline.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrTimeout:
		return e.Timeout()
	}
	return false
}

// Timeout reports whether the request failed because a deadline expired.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// UpstreamError reports a non-2xx response from a backend or metadata provider.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
}

// Is matches [ErrUpstream]; 401 responses additionally match [ErrAuthRequired].
func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case ErrAuthRequired:
		return e.StatusCode == 401
	case ErrForbidden:
		return e.StatusCode == 403
	}
	return false
}

// ErrorKind is the coarse classification used when surfacing failures to users.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTransport
	KindUpstream
	KindAuthRequired
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindUpstream:
		return "upstream"
	case KindAuthRequired:
		return "auth_required"
	default:
		return "unknown"
	}
}

// Classify maps err onto the error taxonomy. AuthRequired wins over Upstream so a
// 401 is reported as a missing identity rather than a generic server failure.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindUnknown
	}
}
