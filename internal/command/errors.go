package command

import "errors"

// Domain-specific errors for command handling.
var (
	// ErrCommandNotFound is returned when a command name is not in the catalog.
	ErrCommandNotFound = errors.New("command: not found")

	// ErrInvalidCommand is returned when a catalog entry is incomplete.
	ErrInvalidCommand = errors.New("command: invalid definition")

	// ErrDuplicateCommand is returned when a name is added to the catalog twice.
	ErrDuplicateCommand = errors.New("command: duplicate name")
)
