package wm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported is returned when a command is outside the active
	// backend's capability set. Never retried.
	ErrNotSupported = errors.New("not supported by backend")

	// ErrConnectionClosed is returned to command callers while the bridge
	// has no live compositor connection or after shutdown.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNotFound is returned when a command targets an entity absent from
	// the model.
	ErrNotFound = errors.New("not found")
)

// InvariantError reports a model inconsistency detected while applying an
// event, usually caused by out-of-order delivery. The mutation is skipped
// and the caller schedules a resync; it is never fatal.
type InvariantError struct {
	Event  string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated applying %s: %s", e.Event, e.Reason)
}
