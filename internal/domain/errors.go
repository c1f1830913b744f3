package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation groups locally detected input errors; they never reach the host.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyName signals a zero-length name.
	ErrEmptyName = fmt.Errorf("%w: name is empty", ErrValidation)
	// ErrDuplicateName signals a name already used by a sibling.
	ErrDuplicateName = fmt.Errorf("%w: name already exists", ErrValidation)

	// ErrTransport signals a failed, timed out or unconnected host request.
	ErrTransport = errors.New("host transport failure")
	// ErrHostRejected signals a host response with success=false.
	ErrHostRejected = errors.New("host rejected request")
	// ErrUnresolvable signals a reference (case, attribute, collection) missing from current state.
	ErrUnresolvable = errors.New("unresolvable reference")
	// ErrStaleNotification signals a notification for a dataset that is no longer active.
	ErrStaleNotification = errors.New("stale notification")
	// ErrStructuralDrift signals local state that no longer matches the host.
	ErrStructuralDrift = errors.New("structural drift")
	// ErrSuperseded signals a response ignored because a newer request for the same target exists.
	ErrSuperseded = errors.New("superseded by newer request")
	// ErrNoDataset signals an operation that needs an active dataset.
	ErrNoDataset = errors.New("no dataset selected")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// HostRejectedError carries the message the host returned with success=false.
type HostRejectedError struct {
	Resource string
	Message  string
}

func (e *HostRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", ErrHostRejected.Error(), e.Resource)
	}
	return fmt.Sprintf("%s: %s: %s", ErrHostRejected.Error(), e.Resource, e.Message)
}

// Unwrap lets errors.Is match both ErrHostRejected and ErrTransport.
func (e *HostRejectedError) Unwrap() []error { return []error{ErrHostRejected, ErrTransport} }

// NewHostRejected creates a host rejection error.
func NewHostRejected(resource, message string) error {
	return &HostRejectedError{Resource: resource, Message: message}
}
