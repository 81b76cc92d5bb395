package manager

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies lifecycle failures for status reporting and HTTP mapping.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindNotFound            ErrorKind = "not_found"
	KindConstruction        ErrorKind = "construction_failure"
	KindTimeout             ErrorKind = "timeout"
	KindResourceUnavailable ErrorKind = "resource_unavailable"
	KindClosed              ErrorKind = "closed"
)

// notFoundError signals an unknown pipeline id (404).
type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "pipeline not found: " + e.id }

// ErrNotFound returns an error for a pipeline id absent from the registry.
func ErrNotFound(id string) error { return notFoundError{id: id} }

// IsNotFound reports whether err indicates a missing pipeline id.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// constructionError wraps a constructor failure.
type constructionError struct {
	id  string
	err error
}

func (e constructionError) Error() string { return fmt.Sprintf("construct pipeline %s: %v", e.id, e.err) }
func (e constructionError) Unwrap() error { return e.err }

// ErrConstruction wraps err as a construction failure of pipeline id.
func ErrConstruction(id string, err error) error { return constructionError{id: id, err: err} }

// IsConstructionFailure reports whether err came from a failed constructor.
func IsConstructionFailure(err error) bool {
	var e constructionError
	return errors.As(err, &e)
}

// timeoutError signals that construction exceeded the load deadline.
type timeoutError struct {
	id    string
	after time.Duration
}

func (e timeoutError) Error() string {
	return fmt.Sprintf("load pipeline %s: timed out after %s", e.id, e.after)
}
func (e timeoutError) Unwrap() error { return context.DeadlineExceeded }

// ErrTimeout returns a load deadline error.
func ErrTimeout(id string, after time.Duration) error { return timeoutError{id: id, after: after} }

// IsTimeout reports whether err indicates an exceeded load deadline.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}

// resourceUnavailableError signals a missing accelerator. It degrades the
// service but is never fatal.
type resourceUnavailableError struct{ msg string }

func (e resourceUnavailableError) Error() string { return e.msg }

// ErrResourceUnavailable constructs a resourceUnavailableError.
func ErrResourceUnavailable(msg string) error { return resourceUnavailableError{msg: msg} }

// IsResourceUnavailable reports whether err indicates a missing accelerator.
func IsResourceUnavailable(err error) bool {
	var e resourceUnavailableError
	return errors.As(err, &e)
}

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("pipeline manager closed")

// KindOf classifies err. Unknown non-nil errors are construction failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case IsNotFound(err):
		return KindNotFound
	case IsTimeout(err):
		return KindTimeout
	case IsResourceUnavailable(err):
		return KindResourceUnavailable
	case errors.Is(err, ErrClosed):
		return KindClosed
	default:
		return KindConstruction
	}
}
