package session

import (
	"errors"
	"fmt"
)

// negotiationError signals a session description or transport setup failure.
type negotiationError struct {
	msg string
	err error
}

func (e negotiationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}
func (e negotiationError) Unwrap() error { return e.err }

// ErrNegotiation wraps err as a negotiation failure described by msg.
func ErrNegotiation(msg string, err error) error {
	negotiationFailures.Inc()
	return negotiationError{msg: msg, err: err}
}

// IsNegotiationFailure reports whether err is a negotiation failure.
func IsNegotiationFailure(err error) bool {
	var e negotiationError
	return errors.As(err, &e)
}

// sessionNotFoundError signals an unknown session id (404).
type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

func IsSessionNotFound(err error) bool {
	var e sessionNotFoundError
	return errors.As(err, &e)
}

// transientError marks network traversal hiccups that are logged at low
// severity and never tear a session down.
type transientError struct{ msg string }

func (e transientError) Error() string { return e.msg }

func errTransient(format string, args ...any) error {
	return transientError{msg: fmt.Sprintf(format, args...)}
}

// IsTransientNetwork reports whether err is transient network noise.
func IsTransientNetwork(err error) bool {
	var e transientError
	return errors.As(err, &e)
}

// ErrShuttingDown is returned for offers received after Shutdown.
var ErrShuttingDown = errors.New("session manager is shutting down")
