// Package pool maps a function over a batch of inputs on a fixed number
// of workers. A failing or panicking task is recorded as a failed Outcome
// and never stops its siblings.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-procbatch/internal/logging"
)

// Task is the function applied to every input.
type Task[In, Out any] func(ctx context.Context, in In) (Out, error)

// Config holds configuration for creating a Pool.
type Config struct {
	Workers int

	// Verbose logs a progress line as each task starts.
	Verbose bool

	// Debug runs tasks one at a time in input order with per-item timing.
	// The first error aborts the batch; panics are not recovered.
	Debug bool

	Logger    *slog.Logger
	Callbacks Callbacks
}

// Pool runs batches. It holds no per-batch state and can be reused.
type Pool struct {
	workers   int
	verbose   bool
	debug     bool
	logger    *slog.Logger
	callbacks Callbacks
}

// New creates a Pool. It fails with ErrInvalidConcurrency for Workers < 1.
func New(cfg Config) (*Pool, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidConcurrency, cfg.Workers)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pool{
		workers:   cfg.Workers,
		verbose:   cfg.Verbose,
		debug:     cfg.Debug,
		logger:    logger,
		callbacks: cfg.Callbacks,
	}, nil
}

// Workers returns the configured concurrency.
func (p *Pool) Workers() int {
	return p.workers
}

// Debug reports whether the pool runs sequentially.
func (p *Pool) Debug() bool {
	return p.debug
}

// batch is the per-run shared state. count is the only value mutated by
// more than one worker and is guarded by mu.
type batch struct {
	id    string
	total int
	start time.Time

	mu    sync.Mutex
	count int
}

func (p *Pool) newBatch(total int) *batch {
	b := &batch{
		id:    uuid.NewString(),
		total: total,
		start: time.Now(),
	}
	p.logger.Debug("batch_starting",
		"run_id", b.id,
		"total", total,
		"workers", p.workers,
		"debug", p.debug,
	)
	if p.callbacks.OnStart != nil {
		p.callbacks.OnStart(b.id, total)
	}
	return b
}

// advance logs the fraction of started tasks, then counts this one.
// Logging and increment share the critical section so the reported
// fractions are consistent across workers.
func (p *Pool) advance(b *batch) {
	b.mu.Lock()
	if p.verbose {
		p.logger.Info("progress",
			"run_id", b.id,
			"elapsed", time.Since(b.start).String(),
			"progress", float64(b.count)/float64(b.total),
		)
	}
	b.count++
	started := b.count
	b.mu.Unlock()

	if p.callbacks.OnProgress != nil {
		p.callbacks.OnProgress(started, b.total)
	}
}

func (p *Pool) finish(b *batch) {
	elapsed := time.Since(b.start)
	if p.verbose {
		p.logger.Info("batch_finished",
			"run_id", b.id,
			"total", b.total,
			"elapsed", elapsed.String(),
		)
	}
	if p.callbacks.OnFinish != nil {
		p.callbacks.OnFinish(elapsed)
	}
}

func (p *Pool) itemDone(index int, ok bool, elapsed time.Duration) {
	if p.callbacks.OnItemDone != nil {
		p.callbacks.OnItemDone(index, ok, elapsed)
	}
}

// Run applies task to every input and returns one Outcome per input, in
// input order. Task failures are isolated into their Outcome; the error
// return is only used in debug mode, where the first task error aborts.
func Run[In, Out any](ctx context.Context, p *Pool, inputs []In, task Task[In, Out]) ([]Outcome[Out], error) {
	if p.debug {
		return runSequential(ctx, p, inputs, task)
	}
	return runParallel(ctx, p, inputs, task), nil
}

func runParallel[In, Out any](ctx context.Context, p *Pool, inputs []In, task Task[In, Out]) []Outcome[Out] {
	b := p.newBatch(len(inputs))
	outcomes := make([]Outcome[Out], len(inputs))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, in := range inputs {
		i, in := i, in // per-iteration copies (go directive is 1.21, pre-loopvar semantics)
		g.Go(func() error {
			outcomes[i] = invoke(ctx, p, b, i, in, task)
			return nil
		})
	}
	// Workers never return errors; isolation happens in invoke.
	_ = g.Wait()

	p.finish(b)
	return outcomes
}

// invoke is the per-item wrapper: it counts progress, runs the task, and
// converts both returned errors and panics into a failed Outcome.
func invoke[In, Out any](ctx context.Context, p *Pool, b *batch, index int, in In, task Task[In, Out]) (out Outcome[Out]) {
	p.advance(b)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = Fail[Out](newPanicError(index, r))
		}
		out.Elapsed = time.Since(start)
		if !out.OK {
			p.logger.Debug("task_failed",
				"run_id", b.id,
				"index", index,
				"error", out.Err.Message,
			)
		}
		p.itemDone(index, out.OK, out.Elapsed)
	}()

	v, err := task(ctx, in)
	if err != nil {
		return Fail[Out](newTaskError(index, err))
	}
	return Ok(v)
}

// runSequential is the debug path: no workers, no isolation.
func runSequential[In, Out any](ctx context.Context, p *Pool, inputs []In, task Task[In, Out]) ([]Outcome[Out], error) {
	b := p.newBatch(len(inputs))
	outcomes := make([]Outcome[Out], 0, len(inputs))

	for i, in := range inputs {
		p.logger.Info("working_on", "run_id", b.id, "index", i, "input", fmt.Sprint(in))
		p.advance(b)

		start := time.Now()
		v, err := task(ctx, in)
		elapsed := time.Since(start)
		p.logger.Info("time_spent", "run_id", b.id, "index", i, "elapsed", elapsed.String())
		p.itemDone(i, err == nil, elapsed)

		if err != nil {
			p.logger.Info("batch_aborted", "run_id", b.id, "index", i, "error", err)
			p.finish(b)
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		o := Ok(v)
		o.Elapsed = elapsed
		outcomes = append(outcomes, o)
	}

	p.finish(b)
	return outcomes, nil
}
