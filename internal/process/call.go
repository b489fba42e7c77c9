package process

import (
	"context"
	"time"
)

// CallOptions controls RunChecked.
type CallOptions struct {
	// Verbose echoes the command line before running and dumps captured
	// output when the command fails.
	Verbose bool

	// NoError reports non-zero exits in the result instead of as an
	// *ExecutionError.
	NoError bool
}

// RunChecked runs the invocation and turns a non-zero exit code into an
// *ExecutionError unless opts.NoError is set. The result is returned in
// both cases so callers can inspect the captured output.
func (r *Runner) RunChecked(ctx context.Context, inv Invocation, opts CallOptions) (*Result, error) {
	if opts.Verbose {
		r.echo.Command(inv.String())
	}

	start := time.Now()
	res, err := r.Run(ctx, inv)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Info("process_call_finished",
			"command", inv.String(),
			"error", err,
			"elapsed", elapsed.String(),
		)
		// An uncaptured timeout still carries the sentinel exit code,
		// and is reported even with NoError.
		return res, err
	}

	r.logger.Info("process_call_finished",
		"command", inv.String(),
		"exit_code", res.ExitCode,
		"elapsed", elapsed.String(),
	)

	if !opts.NoError && res.ExitCode != 0 {
		if opts.Verbose {
			r.echo.Failure(res.StdoutText(), res.StderrText())
		}
		return res, &ExecutionError{Code: res.ExitCode, Command: inv.String()}
	}
	return res, nil
}
