package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/Rohianon/folio/pkg/errors"
)

// Sentinels for errors.Is checks. Every typed error below matches exactly one.
var (
	ErrTimeout   = apperrors.ErrTimeout
	ErrHTTP      = apperrors.ErrUpstream
	ErrDecode    = apperrors.ErrDecode
	ErrTransport = apperrors.ErrTransport
)

// TimeoutError is returned when a request does not complete within the
// client's per-call timeout.
type TimeoutError struct {
	Method string
	Path   string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: timed out after %s", e.Method, e.Path, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Body    string
	Message string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

// Is matches ErrHTTP for every status, and additionally ErrNotFound for 404.
func (e *HTTPError) Is(target error) bool {
	if target == ErrHTTP {
		return true
	}
	return target == apperrors.ErrNotFound && e.Status == http.StatusNotFound
}

// DecodeError is returned when the body is not JSON or does not parse.
type DecodeError struct {
	Method      string
	Path        string
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: unexpected content type %q", e.Method, e.Path, e.ContentType)
	}
	return fmt.Sprintf("%s %s: decode response: %v", e.Method, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// TransportError wraps connection-level failures and caller cancellation.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}
