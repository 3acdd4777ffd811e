package command

import "fmt"

// SerializationError means an envelope could not be encoded. It is never retried.
type SerializationError struct {
	Kind Kind
	Err  error
}

func (e *SerializationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("command: serialize: %v", e.Err)
	}
	return fmt.Sprintf("command: serialize %s: %v", e.Kind, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// PublishError means the broker rejected or timed out a write. The caller decides whether to resubmit.
type PublishError struct {
	Topic string
	Key   string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("command: publish to %s (key %q): %v", e.Topic, e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// DecodeError means a received payload is not a valid envelope for its topic.
type DecodeError struct {
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("command: decode message from %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownCommandError means no handler is registered for the kind. It is retried like any other failure.
type UnknownCommandError struct {
	Topic string
	Kind  Kind
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("command: unknown command %q on %s", e.Kind, e.Topic)
}

// ProcessingError wraps a handler failure.
type ProcessingError struct {
	Kind Kind
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("command: process %s: %v", e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
