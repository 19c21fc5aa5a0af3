package loom

import "fmt"

// Errors returned during queue and group construction. Posting itself never
// returns errors: capacity rejection is a boolean result by contract.
var (
	// ErrQueueSealed is returned by TaskQueue.RegisterConsumer once any
	// producer has pushed. The lane layout must be fixed before tasks flow,
	// so consumers can only be registered while the queue is still idle.
	ErrQueueSealed = &GroupError{msg: "queue is sealed, tasks already pushed"}

	// ErrNoFreeLane is returned by TaskQueue.RegisterConsumer when every
	// lane already has a consumer. The lane count is fixed at construction.
	ErrNoFreeLane = &GroupError{msg: "no free consumer lane"}
)

// GroupError represents an error raised by the worker group or its queue.
// It supports unwrapping via errors.Unwrap for use with errors.Is.
type GroupError struct {
	msg string
	err error
}

// Error returns a formatted error message, including the underlying error
// when one exists.
func (e *GroupError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("loom: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("loom: %s", e.msg)
}

// Unwrap returns the underlying error, if any.
func (e *GroupError) Unwrap() error {
	return e.err
}

// errInvalidConfig creates an error for invalid construction parameters.
func errInvalidConfig(msg string) error {
	return &GroupError{msg: "invalid config: " + msg}
}
