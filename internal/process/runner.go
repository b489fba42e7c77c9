// Package process runs child processes with live, concurrent capture of
// their output streams and an optional wall-clock timeout.
package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/randomizedcoder/go-procbatch/internal/logging"
)

const (
	// DefaultPollInterval bounds the controller's idle sleep.
	DefaultPollInterval = 5 * time.Millisecond

	// DefaultDrainWait is how long the final drain waits for each line.
	DefaultDrainWait = 100 * time.Millisecond
)

// Config holds configuration for creating a Runner.
type Config struct {
	Logger   *slog.Logger
	Observer Observer

	// Echo prints command lines and failure dumps for RunChecked.
	// Nil disables them.
	Echo *logging.Echo

	// Stdout and Stderr receive the child's output when capture is
	// disabled. Default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	PollInterval time.Duration
	DrainWait    time.Duration
}

// Runner executes child processes. It holds no per-run state and is safe
// for concurrent use.
type Runner struct {
	logger   *slog.Logger
	observer Observer
	echo     *logging.Echo
	stdout   io.Writer
	stderr   io.Writer

	pollInterval time.Duration
	drainWait    time.Duration
}

// New creates a Runner with the given configuration.
func New(cfg Config) *Runner {
	r := &Runner{
		logger:       cfg.Logger,
		observer:     cfg.Observer,
		echo:         cfg.Echo,
		stdout:       cfg.Stdout,
		stderr:       cfg.Stderr,
		pollInterval: cfg.PollInterval,
		drainWait:    cfg.DrainWait,
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.observer == nil {
		r.observer = noopObserver{}
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	if r.pollInterval <= 0 {
		r.pollInterval = DefaultPollInterval
	}
	if r.drainWait <= 0 {
		r.drainWait = DefaultDrainWait
	}
	return r
}

// Run executes the invocation and waits for it to finish.
//
// A non-zero exit code is not an error. Errors are returned for invalid
// invocations, launch failures, context cancellation, and timeouts on the
// uncaptured path. On the captured path a timeout kills the child and
// returns the sentinel result (TimeoutExitCode, "", TimeoutMarker) with a
// nil error.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if inv.Capture {
		return r.runCaptured(ctx, inv)
	}
	return r.runInherited(ctx, inv)
}

// configure applies the settings shared by both paths.
func configure(cmd *exec.Cmd, inv Invocation) {
	cmd.Dir = inv.Dir
	cmd.Env = mergeEnv(os.Environ(), inv.Env)
	setProcessGroup(cmd)
}

// runInherited runs without capture; the child writes straight to the
// runner's output streams.
func (r *Runner) runInherited(ctx context.Context, inv Invocation) (*Result, error) {
	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Args[0], inv.Args[1:]...)
	cmd.Cancel = func() error { return killGroup(cmd) }
	configure(cmd, inv)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.WaitDelay = r.drainWait

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", inv.Args[0], err)
	}
	r.observer.ProcessStarted()

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if inv.Timeout > 0 && runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		r.observer.ProcessFinished(timeoutExit, elapsed)
		r.logger.Warn("process_timeout",
			"command", inv.String(),
			"timeout", inv.Timeout.String(),
		)
		return &Result{ExitCode: TimeoutExitCode},
			fmt.Errorf("%w after %s: %s", ErrTimeout, inv.Timeout, inv.String())
	}
	if err := ctx.Err(); err != nil {
		r.observer.ProcessFinished(exitStatus(waitErr), elapsed)
		return nil, err
	}

	exit := exitStatus(waitErr)
	r.observer.ProcessFinished(exit, elapsed)
	return &Result{ExitCode: exit.Code}, nil
}

// runCaptured launches the child with both streams piped and drives the
// controller loop: poll liveness, move at most one line per stream into
// the accumulated text, check the deadline, sleep briefly when idle.
func (r *Runner) runCaptured(ctx context.Context, inv Invocation) (*Result, error) {
	// The controller owns kill decisions, so the command is not bound to ctx.
	cmd := exec.Command(inv.Args[0], inv.Args[1:]...)
	configure(cmd, inv)

	// os.Pipe rather than StdoutPipe: Wait must not close the read ends
	// while the readers are still draining them.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, fmt.Errorf("start %s: %w", inv.Args[0], err)
	}

	// The child holds its own copies; closing ours lets the readers see EOF.
	outW.Close()
	errW.Close()

	r.observer.ProcessStarted()
	r.logger.Debug("process_started",
		"command", inv.String(),
		"pid", cmd.Process.Pid,
		"timeout", inv.Timeout.String(),
	)

	outQ := newLineQueue()
	errQ := newLineQueue()
	outRd := newStreamReader(outR, outQ, StreamStdout)
	errRd := newStreamReader(errR, errQ, StreamStderr)
	go outRd.Run()
	go errRd.Run()

	done := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(done)
	}()

	c := &capture{
		runner:  r,
		inv:     inv,
		cmd:     cmd,
		done:    done,
		start:   start,
		outLog:  logging.NewStreamLogger(r.logger, string(StreamStdout), slog.LevelInfo, "command", inv.Args[0]),
		errLog:  logging.NewStreamLogger(r.logger, string(StreamStderr), slog.LevelWarn, "command", inv.Args[0]),
		outText: &strings.Builder{},
		errText: &strings.Builder{},
		outQ:    outQ,
		errQ:    errQ,
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for !isClosed(done) {
		idle := true
		if line, ok := outQ.TryPop(); ok {
			c.add(StreamStdout, line)
			idle = false
		}
		if line, ok := errQ.TryPop(); ok {
			c.add(StreamStderr, line)
			idle = false
		}

		if c.expired() {
			return c.kill(), nil
		}
		if err := ctx.Err(); err != nil {
			c.abort()
			r.observer.ProcessFinished(exitStatus(waitErr), time.Since(start))
			return nil, err
		}

		if idle {
			select {
			case <-done:
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
	}

	// The readers run independently of Wait, so lines written right
	// before exit may still be in flight.
	for _, q := range []struct {
		queue  *lineQueue
		stream Stream
	}{{outQ, StreamStdout}, {errQ, StreamStderr}} {
		for {
			line, ok := q.queue.PopWait(r.drainWait)
			if !ok {
				break
			}
			c.add(q.stream, line)
			if c.expired() {
				return c.kill(), nil
			}
		}
	}

	exit := exitStatus(waitErr)
	code := exit.Code
	elapsed := time.Since(start)
	r.observer.ProcessFinished(exit, elapsed)

	outBytes, outLines := outRd.Stats()
	errBytes, errLines := errRd.Stats()
	r.logger.Debug("process_exited",
		"command", inv.String(),
		"exit_code", code,
		"elapsed", elapsed.String(),
		"stdout_bytes", outBytes,
		"stdout_lines", outLines,
		"stderr_bytes", errBytes,
		"stderr_lines", errLines,
	)
	r.checkStreams(inv, outRd, errRd)

	return capturedResult(code, c.outText.String(), c.errText.String()), nil
}

// capture is the controller's per-run state.
type capture struct {
	runner *Runner
	inv    Invocation
	cmd    *exec.Cmd
	done   <-chan struct{}
	start  time.Time

	outLog, errLog   *logging.StreamLogger
	outText, errText *strings.Builder
	outQ, errQ       *lineQueue
}

// checkStreams warns when a stream ended on a read error, or still had
// lines in flight when the drain gave up. Either means the captured text
// is truncated.
func (r *Runner) checkStreams(inv Invocation, readers ...*streamReader) {
	for _, rd := range readers {
		if err := rd.Err(); err != nil {
			r.logger.Warn("stream_read_error",
				"command", inv.String(),
				"stream", string(rd.stream),
				"error", err,
			)
		}
		if n := rd.queue.Len(); n > 0 {
			r.logger.Warn("stream_undrained",
				"command", inv.String(),
				"stream", string(rd.stream),
				"lines", n,
			)
		}
	}
}

func (c *capture) add(stream Stream, line string) {
	c.runner.observer.LineCaptured(stream)
	if stream == StreamStdout {
		c.outText.WriteString(line)
		c.outLog.HandleLine(line)
		return
	}
	c.errText.WriteString(line)
	c.errLog.HandleLine(line)
}

func (c *capture) expired() bool {
	return c.inv.Timeout > 0 && time.Since(c.start) > c.inv.Timeout
}

// kill terminates the process tree, reaps it, and returns the sentinel.
// Output accumulated so far is dropped.
func (c *capture) kill() *Result {
	c.abort()
	elapsed := time.Since(c.start)
	c.runner.observer.ProcessFinished(timeoutExit, elapsed)
	c.runner.logger.Warn("process_timeout",
		"command", c.inv.String(),
		"timeout", c.inv.Timeout.String(),
		"elapsed", elapsed.String(),
		"discarded_lines", c.outQ.Len()+c.errQ.Len(),
	)
	return timeoutResult()
}

// abort kills the process tree and waits for Wait to return.
// The stream readers are left to finish on their own.
func (c *capture) abort() {
	if err := killGroup(c.cmd); err != nil {
		c.runner.logger.Debug("process_kill_failed",
			"command", c.inv.String(),
			"error", err,
		)
	}
	<-c.done
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
