package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityInUse is returned when spawning an identity that already has
	// a live process in the same System.
	ErrIdentityInUse = errors.New("identity already has a live process")

	// ErrSystemStopped is returned when spawning into a System that has shut down.
	ErrSystemStopped = errors.New("system stopped")

	// ErrNoReply is returned by Inbox.Receive and Ask when the context ends
	// before a reply arrives.
	ErrNoReply = errors.New("no reply")
)

// Failure phases.
const (
	PhaseRecover = "recover"
	PhasePersist = "persist"
	PhaseReceive = "receive"
)

// FailureError records why a process stopped abnormally.
type FailureError struct {
	Identity Identity
	Phase    string
	Err      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("entity %s failed during %s: %v", e.Identity, e.Phase, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// IsFailure reports whether err is, or wraps, a *FailureError.
func IsFailure(err error) bool {
	var fe *FailureError
	return errors.As(err, &fe)
}
