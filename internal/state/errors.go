package state

import "errors"

// Domain-specific errors for state synchronisation.
var (
	// ErrUnknownMessage is returned when a payload matches no known message shape.
	ErrUnknownMessage = errors.New("state: payload matches no known message shape")

	// ErrKeyNotFound is reported for a state-change key absent from the store.
	ErrKeyNotFound = errors.New("state: key not found")

	// errMissingField marks a required field absent from a payload.
	errMissingField = errors.New("missing required field")
)
