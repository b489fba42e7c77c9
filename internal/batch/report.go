package batch

import (
	"errors"
	"time"

	"github.com/randomizedcoder/go-procbatch/internal/jobs"
	"github.com/randomizedcoder/go-procbatch/internal/pool"
	"github.com/randomizedcoder/go-procbatch/internal/process"
	"github.com/randomizedcoder/go-procbatch/internal/stats"
)

// Item is the result of one job.
type Item struct {
	Index   int
	Name    string
	OK      bool
	Elapsed time.Duration

	// Exited is false when the process never started.
	Exited   bool
	ExitCode int
	TimedOut bool

	Result *process.Result
	Err    *pool.TaskError
}

func newItem(index int, name string, o pool.Outcome[*process.Result]) Item {
	it := Item{
		Index:   index,
		Name:    name,
		OK:      o.OK,
		Elapsed: o.Elapsed,
		Result:  o.Value,
		Err:     o.Err,
	}

	if o.OK {
		it.Exited = true
		it.ExitCode = o.Value.ExitCode
		it.TimedOut = o.Value.TimedOut()
		return it
	}

	var execErr *process.ExecutionError
	switch {
	case errors.As(o.Err, &execErr):
		it.Exited = true
		it.ExitCode = execErr.Code
		it.TimedOut = execErr.Code == process.TimeoutExitCode
	case process.IsTimeout(o.Err):
		it.Exited = true
		it.ExitCode = process.TimeoutExitCode
		it.TimedOut = true
	}
	return it
}

// Record converts the item to a results file record.
func (it Item) Record(runID string) jobs.Record {
	rec := jobs.Record{
		RunID:     runID,
		Index:     it.Index,
		Name:      it.Name,
		OK:        it.OK,
		TimedOut:  it.TimedOut,
		ElapsedMs: float64(it.Elapsed.Microseconds()) / 1000,
	}
	if it.Exited {
		code := it.ExitCode
		rec.ExitCode = &code
	}
	if it.Err != nil {
		rec.Error = it.Err.Message
	}
	return rec
}

// Report is the outcome of a batch.
type Report struct {
	RunID   string
	Mode    pool.Mode
	Workers int
	Elapsed time.Duration
	Jobs    []jobs.Job

	// Items holds one entry per job in job order; in by-command mode, one
	// per distinct name in first-seen order.
	Items []Item

	// ByName is set in by-command mode.
	ByName map[string]pool.Outcome[*process.Result]

	// Err is the batch-level failure: the first failed job in fail-fast
	// mode, or the aborting error in debug mode.
	Err error
}

// FailedCount returns the number of failed items.
func (r *Report) FailedCount() int {
	n := 0
	for _, it := range r.Items {
		if !it.OK {
			n++
		}
	}
	return n
}

// OK reports whether the batch succeeded as a whole.
func (r *Report) OK() bool {
	return r.Err == nil && r.FailedCount() == 0
}

// Summary builds the exit summary for the report. Totals count Items, so
// in by-command mode jobs sharing a name count once.
func (r *Report) Summary() stats.Summary {
	s := stats.Summary{
		RunID:     r.RunID,
		Workers:   r.Workers,
		Elapsed:   r.Elapsed,
		Total:     len(r.Items),
		ExitCodes: make(map[int]int),
	}

	digest := stats.NewDurationDigest()
	for _, it := range r.Items {
		digest.Add(it.Elapsed)
		if it.Exited {
			s.ExitCodes[it.ExitCode]++
		}
		if it.TimedOut {
			s.TimedOut++
		}
		if it.OK {
			s.Succeeded++
			continue
		}
		s.Failed++
		msg := ""
		if it.Err != nil {
			msg = it.Err.Message
		}
		s.Failures = append(s.Failures, stats.Failure{Name: it.Name, Message: msg})
	}
	s.FillDurations(digest)

	if r.Err != nil && len(r.Items) == 0 {
		// Debug mode aborted before outcomes were assembled.
		s.Total = len(r.Jobs)
		s.Failed = 1
		s.Failures = append(s.Failures, stats.Failure{Name: "batch", Message: r.Err.Error()})
	}
	return s
}
