// Package batch runs the jobs of a job file on a worker pool, one child
// process per job.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/randomizedcoder/go-procbatch/internal/jobs"
	"github.com/randomizedcoder/go-procbatch/internal/logging"
	"github.com/randomizedcoder/go-procbatch/internal/pool"
	"github.com/randomizedcoder/go-procbatch/internal/process"
)

// ErrAmbiguousName is returned in by-command mode when two jobs share a
// name but run different commands.
var ErrAmbiguousName = errors.New("batch: job name used for different commands")

// Config holds configuration for creating a Runner.
type Config struct {
	Process *process.Runner
	Logger  *slog.Logger

	// Results, if set, receives one record per job after the batch.
	Results *jobs.ResultWriter

	// Callbacks are chained after the runner's own bookkeeping.
	Callbacks pool.Callbacks

	Workers int

	// Echo prints each command line and the output of failed commands.
	Echo bool

	// Progress logs pool progress as each job starts.
	Progress bool

	Debug     bool
	FailFast  bool
	ByCommand bool
}

// Runner executes job batches.
type Runner struct {
	proc    *process.Runner
	logger  *slog.Logger
	results *jobs.ResultWriter
	echo    bool
	mode    pool.Mode
	workers int

	pool *pool.Pool

	mu    sync.Mutex
	runID string
}

// New creates a Runner. It fails if the pool configuration is invalid.
func New(cfg Config) (*Runner, error) {
	if cfg.Process == nil {
		return nil, errors.New("batch: process runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	r := &Runner{
		proc:    cfg.Process,
		logger:  logger,
		results: cfg.Results,
		echo:    cfg.Echo,
		mode:    pool.ModeFor(cfg.FailFast, cfg.ByCommand),
		workers: cfg.Workers,
	}

	p, err := pool.New(pool.Config{
		Workers: cfg.Workers,
		Verbose: cfg.Progress,
		Debug:   cfg.Debug,
		Logger:  logger,
		Callbacks: pool.Chain(pool.Callbacks{
			OnStart: r.recordRunID,
		}, cfg.Callbacks),
	})
	if err != nil {
		return nil, err
	}
	r.pool = p
	return r, nil
}

// Mode returns the assembly mode chosen from FailFast and ByCommand.
func (r *Runner) Mode() pool.Mode {
	return r.mode
}

func (r *Runner) recordRunID(id string, _ int) {
	r.mu.Lock()
	r.runID = id
	r.mu.Unlock()
}

func (r *Runner) lastRunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// task runs one job through the process runner.
func (r *Runner) task(ctx context.Context, job jobs.Job) (*process.Result, error) {
	return r.proc.RunChecked(ctx, job.Invocation(), process.CallOptions{
		Verbose: r.echo,
		NoError: job.NoError,
	})
}

// Run executes every job in f and returns the report. The returned error
// is non-nil only when the batch could not be run at all; job failures
// are reported in the Report.
func (r *Runner) Run(ctx context.Context, f *jobs.File) (*Report, error) {
	start := time.Now()
	report := &Report{
		Mode:    r.mode,
		Workers: r.workers,
		Jobs:    f.Jobs,
	}

	var err error
	switch r.mode {
	case pool.ModeByInput:
		err = r.runByName(ctx, f.Jobs, report)
	default:
		err = r.runByIndex(ctx, f.Jobs, report)
	}
	if err != nil {
		return nil, err
	}

	report.RunID = r.lastRunID()
	report.Elapsed = time.Since(start)

	if r.results != nil {
		r.writeResults(report)
	}

	r.logger.Info("batch_complete",
		"run_id", report.RunID,
		"mode", r.mode.String(),
		"jobs", len(f.Jobs),
		"failed", report.FailedCount(),
		"elapsed", report.Elapsed.String(),
	)
	return report, nil
}

// runByIndex handles the outcome-list and fail-fast modes.
func (r *Runner) runByIndex(ctx context.Context, js []jobs.Job, report *Report) error {
	outcomes, err := pool.Run(ctx, r.pool, js, r.task)
	if err != nil {
		// Debug mode aborts on the first failure.
		report.Err = err
		return nil
	}

	sum := pool.Summarize(outcomes)
	r.logger.Debug("pool_summary",
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"panicked", sum.Panicked,
		"p95", sum.P95().String(),
	)

	report.Items = make([]Item, len(outcomes))
	for i, o := range outcomes {
		report.Items[i] = newItem(i, js[i].Name, o)
	}

	if r.mode == pool.ModeFailFast {
		if _, err := pool.Values(outcomes); err != nil {
			report.Err = err
		}
	}
	return nil
}

// runByName handles by-command mode: results are keyed by job name.
func (r *Runner) runByName(ctx context.Context, js []jobs.Job, report *Report) error {
	byName := make(map[string]jobs.Job, len(js))
	names := make([]string, len(js))
	for i, j := range js {
		if prev, ok := byName[j.Name]; ok && !slices.Equal(prev.Args, j.Args) {
			return fmt.Errorf("%w: %q", ErrAmbiguousName, j.Name)
		}
		byName[j.Name] = j
		names[i] = j.Name
	}

	task := func(ctx context.Context, name string) (*process.Result, error) {
		return r.task(ctx, byName[name])
	}
	outcomes, err := pool.RunByInput(ctx, r.pool, names, task)
	if err != nil {
		report.Err = err
		return nil
	}

	report.ByName = outcomes
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		report.Items = append(report.Items, newItem(i, name, outcomes[name]))
	}
	return nil
}

func (r *Runner) writeResults(report *Report) {
	for _, it := range report.Items {
		if err := r.results.Write(it.Record(report.RunID)); err != nil {
			r.logger.Error("results_write_failed", "error", err)
			return
		}
	}
}
