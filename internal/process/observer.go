package process

import "time"

// Stream identifies a child output stream.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Exit describes how a child process ended.
type Exit struct {
	Code int

	// Signaled is set when the child was killed by a signal; Code is then
	// 128 plus the signal number.
	Signaled bool

	// TimedOut is set when the runner killed the child at its deadline;
	// Code is then TimeoutExitCode.
	TimedOut bool
}

// Observer receives process lifecycle events, typically a metrics collector.
type Observer interface {
	ProcessStarted()
	ProcessFinished(exit Exit, elapsed time.Duration)
	LineCaptured(stream Stream)
}

type noopObserver struct{}

func (noopObserver) ProcessStarted()                     {}
func (noopObserver) ProcessFinished(Exit, time.Duration) {}
func (noopObserver) LineCaptured(Stream)                 {}
