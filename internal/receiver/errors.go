package receiver

import "errors"

// Domain-specific errors for receiver operations.
var (
	// ErrReceiverNotFound is returned when no receiver is registered for a topic.
	ErrReceiverNotFound = errors.New("receiver: not found")

	// ErrInvalidTopic is returned when registering an empty topic.
	ErrInvalidTopic = errors.New("receiver: topic cannot be empty")
)
