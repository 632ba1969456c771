package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfiguration indicates an unknown collision group, a malformed shape
	// or an invalid startup parameter. Fatal at startup.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrAlreadyInitialized indicates a second Initialize call on a world.
	ErrAlreadyInitialized = errors.New("dynamo: world already initialized")

	// ErrNotInitialized indicates use of a world before Initialize.
	ErrNotInitialized = errors.New("dynamo: world not initialized")

	// ErrInvalidTimestep indicates a negative, NaN or Inf step duration.
	ErrInvalidTimestep = errors.New("dynamo: invalid timestep")

	// ErrConstraintDependency indicates removal of a body that a live
	// constraint still references.
	ErrConstraintDependency = errors.New("dynamo: body referenced by a live constraint")

	// ErrUnknownBody indicates a body id that is not (or no longer) present.
	ErrUnknownBody = errors.New("dynamo: unknown body")

	// ErrUnknownConstraint indicates a constraint id that is not present.
	ErrUnknownConstraint = errors.New("dynamo: unknown constraint")

	// ErrReentrantStep indicates a world mutation or step issued while a step
	// is already running.
	ErrReentrantStep = errors.New("dynamo: world is stepping")
)

// BodyError wraps an error with the operation and body it concerns.
type BodyError struct {
	Op      string
	Body    BodyID
	Wrapped error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("%s body %d: %v", e.Op, e.Body, e.Wrapped)
}

func (e *BodyError) Unwrap() error {
	return e.Wrapped
}
