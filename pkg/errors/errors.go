package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressSpaceExhausted means no /24 remains inside the reserved
	// range's first octet. Fatal, never retried.
	ErrAddressSpaceExhausted = errors.New("no subnet addresses remain in the reserved range")

	// ErrRuntimeUnavailable means the container runtime could not be reached
	// or timed out. Fatal for the attempt, retryable by the caller.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrUserRequired is returned when a launch request carries no user identity.
	ErrUserRequired = errors.New("user identity is required")
)

// DuplicateNetworkError is returned when the runtime rejected a network
// creation because the name or subnet is already taken. A launch that sees
// this lost an allocation race and should re-run the allocation.
type DuplicateNetworkError struct {
	Name   string
	Subnet string
	Cause  error
}

func (e *DuplicateNetworkError) Error() string {
	return fmt.Sprintf("network %s with subnet %s already exists: %v", e.Name, e.Subnet, e.Cause)
}

func (e *DuplicateNetworkError) Unwrap() error {
	return e.Cause
}

// EndpointConflictError is returned when the runtime reports that a container
// is already attached to the target network. For the hub container this is
// success, not failure.
type EndpointConflictError struct {
	Network  string
	Endpoint string
	Cause    error
}

func (e *EndpointConflictError) Error() string {
	return fmt.Sprintf("endpoint %s already attached to network %s: %v", e.Endpoint, e.Network, e.Cause)
}

func (e *EndpointConflictError) Unwrap() error {
	return e.Cause
}

// InvalidOptionError is returned when a user-supplied launch option cannot be
// used. The launch is aborted before any runtime state is touched.
type InvalidOptionError struct {
	Option string
	Value  string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option %s=%q: %s", e.Option, e.Value, e.Reason)
}
