package elasticsearch

import (
	"fmt"

	"github.com/ericfisherdev/esdesk/internal/domain/port/driven"
)

// ErrRemote matches every failure of a remote call: transport errors,
// non-2xx statuses and undecodable bodies. Use errors.As with the concrete
// types for detail.
var ErrRemote = driven.ErrRemote

// StatusError is returned for non-2xx responses of typed calls. Body carries
// the raw response text for diagnostics.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is reports whether target is ErrRemote.
func (e *StatusError) Is(target error) bool { return target == ErrRemote }

// DecodeError is returned when a 2xx body does not match the expected shape.
type DecodeError struct {
	Method string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: decode response: %v", e.Method, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRemote.
func (e *DecodeError) Is(target error) bool { return target == ErrRemote }

// RequestError wraps connection failures, timeouts and cancellations.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is reports whether target is ErrRemote.
func (e *RequestError) Is(target error) bool { return target == ErrRemote }
