package pool

import "errors"

// Domain-specific errors for pool operations.
var (
	// ErrInvalidSize is returned when a pool is configured with fewer than one connection.
	ErrInvalidSize = errors.New("pool: size must be at least 1")

	// ErrPoolClosed is returned by Send after Close.
	ErrPoolClosed = errors.New("pool: closed")
)
