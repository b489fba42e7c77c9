package process

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyArgs is returned for an invocation without an executable.
	ErrEmptyArgs = errors.New("invocation has no arguments")

	// ErrTimeout is returned when an uncaptured invocation exceeds its
	// timeout. Captured invocations report the timeout through the
	// sentinel result instead.
	ErrTimeout = errors.New("process timed out")
)

// ExecutionError reports a non-zero exit from Runner.RunChecked.
type ExecutionError struct {
	Code    int
	Command string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%d: calling %s failed", e.Code, e.Command)
}

// IsTimeout reports whether the error came from an exceeded deadline
// on the uncaptured path.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
