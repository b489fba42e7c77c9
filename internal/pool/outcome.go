package pool

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// ErrInvalidConcurrency is returned by New when Workers is less than 1.
var ErrInvalidConcurrency = errors.New("pool: workers must be at least 1")

// Outcome is the tagged result of one task: either a value (OK) or a
// *TaskError, never both.
type Outcome[T any] struct {
	OK      bool
	Value   T
	Err     *TaskError
	Elapsed time.Duration
}

// Ok tags a successful value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{OK: true, Value: v}
}

// Fail tags a failure.
func Fail[T any](err *TaskError) Outcome[T] {
	return Outcome[T]{Err: err}
}

// Unwrap returns the value or the task error.
func (o Outcome[T]) Unwrap() (T, error) {
	if o.OK {
		return o.Value, nil
	}
	var zero T
	return zero, o.Err
}

// TaskError is a failure isolated from one task. Message is the error
// text; Stack is captured where the failure was recorded, for returned
// errors and panics alike. Detail renders both.
type TaskError struct {
	Index   int
	Message string
	Cause   error
	Panic   any
	Stack   []byte
}

func newTaskError(index int, err error) *TaskError {
	return &TaskError{Index: index, Message: err.Error(), Cause: err, Stack: debug.Stack()}
}

func newPanicError(index int, recovered any) *TaskError {
	te := &TaskError{
		Index:   index,
		Message: fmt.Sprintf("panic: %v", recovered),
		Panic:   recovered,
		Stack:   debug.Stack(),
	}
	if err, ok := recovered.(error); ok {
		te.Cause = err
	}
	return te
}

func (e *TaskError) Error() string {
	return e.Message
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Detail returns the message followed by the stack trace, if any.
func (e *TaskError) Detail() string {
	if len(e.Stack) == 0 {
		return e.Message
	}
	return e.Message + "\n" + string(e.Stack)
}

// AggregateError reports the first failed task, in input order, of a
// RunOrFail batch.
type AggregateError struct {
	Index int
	Err   *TaskError
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("task %d failed: %s", e.Index, e.Err.Message)
}

func (e *AggregateError) Unwrap() error {
	return e.Err
}
