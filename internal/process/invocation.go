package process

import (
	"strings"
	"time"
)

// Reserved values reported when the runner kills a child for exceeding
// its timeout. Partial output collected before the kill is discarded.
const (
	TimeoutExitCode = -1
	TimeoutMarker   = "TIMEOUT!"
)

// Invocation describes a single child process launch.
type Invocation struct {
	// Args is the argument vector. Args[0] is the executable.
	Args []string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env holds overrides merged on top of the current environment.
	Env map[string]string

	// Capture enables streaming capture of stdout and stderr.
	// When false the child inherits the runner's output streams.
	Capture bool

	// Timeout is the wall-clock limit. Zero means unbounded.
	Timeout time.Duration
}

// Validate checks the invocation can be launched.
func (inv Invocation) Validate() error {
	if len(inv.Args) == 0 || inv.Args[0] == "" {
		return ErrEmptyArgs
	}
	return nil
}

// String returns the command line as it is echoed before execution.
func (inv Invocation) String() string {
	return strings.Join(inv.Args, " ")
}

// Result is the outcome of an Invocation.
//
// Stdout and Stderr are nil when capture was disabled and non-nil (possibly
// empty) when it was enabled.
type Result struct {
	ExitCode int
	Stdout   *string
	Stderr   *string
}

// TimedOut reports whether the result is the timeout sentinel.
func (r *Result) TimedOut() bool {
	return r != nil && r.ExitCode == TimeoutExitCode
}

// Captured reports whether output text is present.
func (r *Result) Captured() bool {
	return r != nil && r.Stdout != nil && r.Stderr != nil
}

// StdoutText returns the captured stdout, or "" when absent.
func (r *Result) StdoutText() string {
	if r == nil || r.Stdout == nil {
		return ""
	}
	return *r.Stdout
}

// StderrText returns the captured stderr, or "" when absent.
func (r *Result) StderrText() string {
	if r == nil || r.Stderr == nil {
		return ""
	}
	return *r.Stderr
}

func capturedResult(code int, stdout, stderr string) *Result {
	return &Result{ExitCode: code, Stdout: &stdout, Stderr: &stderr}
}

func timeoutResult() *Result {
	return capturedResult(TimeoutExitCode, "", TimeoutMarker)
}
