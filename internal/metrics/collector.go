// Package metrics provides Prometheus metrics for procbatch.
//
// Metrics are grouped into panels:
//   - Batch overview: job count, progress, in-flight tasks
//   - Processes: starts, exits by category, timeouts, duration, output lines
//   - Tasks: pool outcomes and task duration
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-procbatch/internal/pool"
	"github.com/randomizedcoder/go-procbatch/internal/process"
	"github.com/randomizedcoder/go-procbatch/internal/stats"
)

// durationBuckets cover short helper commands up to long-running jobs.
var durationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1, 2.5, 5, 10, 30, 60, 300,
}

// Collector holds all Prometheus metrics for one procbatch run. It
// implements process.Observer and feeds pool progress through Callbacks.
type Collector struct {
	// --- Panel 1: Batch Overview ---
	info        *prometheus.GaugeVec
	jobsTotal   prometheus.Gauge
	progress    prometheus.Gauge
	inFlight    prometheus.Gauge
	elapsed     prometheus.Gauge
	batchesDone prometheus.Counter

	// --- Panel 2: Processes ---
	processStarts   prometheus.Counter
	processExits    *prometheus.CounterVec
	processTimeouts prometheus.Counter
	processDuration prometheus.Histogram
	outputLines     *prometheus.CounterVec

	// --- Panel 3: Tasks ---
	tasks        *prometheus.CounterVec
	taskDuration prometheus.Histogram

	// For summary generation
	mu           sync.Mutex
	startTime    time.Time
	running      int
	peakInFlight int
	totalStarts  int64
	timeouts     int64
	exitCodes    map[int]int64
	durations    *stats.DurationDigest
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Workers int
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "procbatch_info",
				Help: "Information about the batch runner (value always 1)",
			},
			[]string{"version", "workers"},
		),
		jobsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procbatch_batch_jobs",
			Help: "Number of jobs in the current batch",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procbatch_batch_progress",
			Help: "Fraction of jobs started in the current batch (0.0 to 1.0)",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procbatch_processes_running",
			Help: "Child processes currently running",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "procbatch_batch_elapsed_seconds",
			Help: "Wall-clock duration of the last finished batch",
		}),
		batchesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procbatch_batches_total",
			Help: "Total batches finished",
		}),

		processStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procbatch_process_starts_total",
			Help: "Total child processes started",
		}),
		processExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procbatch_process_exits_total",
				Help: "Total child process exits by category",
			},
			[]string{"category"},
		),
		processTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procbatch_process_timeouts_total",
			Help: "Total child processes killed by the runner's timeout",
		}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procbatch_process_duration_seconds",
			Help:    "Child process wall-clock duration",
			Buckets: durationBuckets,
		}),
		outputLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procbatch_output_lines_total",
				Help: "Total captured output lines by stream",
			},
			[]string{"stream"},
		),

		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procbatch_tasks_total",
				Help: "Total pool tasks finished by outcome",
			},
			[]string{"outcome"},
		),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procbatch_task_duration_seconds",
			Help:    "Pool task duration, including process start and output drain",
			Buckets: durationBuckets,
		}),

		startTime: time.Now(),
		exitCodes: make(map[int]int64),
		durations: stats.NewDurationDigest(),
	}

	registry.MustRegister(
		// Panel 1: Batch Overview
		c.info,
		c.jobsTotal,
		c.progress,
		c.inFlight,
		c.elapsed,
		c.batchesDone,

		// Panel 2: Processes
		c.processStarts,
		c.processExits,
		c.processTimeouts,
		c.processDuration,
		c.outputLines,

		// Panel 3: Tasks
		c.tasks,
		c.taskDuration,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, strconv.Itoa(cfg.Workers)).Set(1)

	return c
}

// =============================================================================
// process.Observer
// =============================================================================

var _ process.Observer = (*Collector)(nil)

// ProcessStarted records a child process start.
func (c *Collector) ProcessStarted() {
	c.processStarts.Inc()
	c.inFlight.Inc()

	c.mu.Lock()
	c.totalStarts++
	c.running++
	if c.running > c.peakInFlight {
		c.peakInFlight = c.running
	}
	c.mu.Unlock()
}

// ProcessFinished records a child process exit.
func (c *Collector) ProcessFinished(exit process.Exit, elapsed time.Duration) {
	c.inFlight.Dec()
	c.processExits.WithLabelValues(exitCategory(exit)).Inc()
	c.processDuration.Observe(elapsed.Seconds())
	if exit.TimedOut {
		c.processTimeouts.Inc()
	}

	c.durations.Add(elapsed)

	c.mu.Lock()
	c.running--
	c.exitCodes[exit.Code]++
	if exit.TimedOut {
		c.timeouts++
	}
	c.mu.Unlock()
}

// LineCaptured records one captured output line.
func (c *Collector) LineCaptured(stream process.Stream) {
	c.outputLines.WithLabelValues(string(stream)).Inc()
}

// exitCategory buckets an exit for the exits counter.
func exitCategory(exit process.Exit) string {
	switch {
	case exit.TimedOut:
		return "timeout"
	case exit.Signaled:
		return "signal"
	case exit.Code == 0:
		return "success"
	default:
		return "error"
	}
}

// =============================================================================
// Pool callbacks
// =============================================================================

// Callbacks returns pool callbacks that keep the batch and task metrics
// current.
func (c *Collector) Callbacks() pool.Callbacks {
	return pool.Callbacks{
		OnStart: func(_ string, total int) {
			c.jobsTotal.Set(float64(total))
			c.progress.Set(0)
		},
		OnProgress: func(started, total int) {
			if total > 0 {
				c.progress.Set(float64(started) / float64(total))
			}
		},
		OnItemDone: func(_ int, ok bool, elapsed time.Duration) {
			outcome := "ok"
			if !ok {
				outcome = "failed"
			}
			c.tasks.WithLabelValues(outcome).Inc()
			c.taskDuration.Observe(elapsed.Seconds())
		},
		OnFinish: func(elapsed time.Duration) {
			c.elapsed.Set(elapsed.Seconds())
			c.batchesDone.Inc()
		},
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds process-level data for the exit summary.
type Summary struct {
	Duration     time.Duration
	PeakInFlight int
	TotalStarts  int64
	Timeouts     int64
	ExitCodes    map[int]int64
	DurationP50  time.Duration
	DurationP95  time.Duration
	DurationP99  time.Duration
}

// GenerateSummary creates a summary of all processes seen so far.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	s := &Summary{
		Duration:     time.Since(c.startTime),
		PeakInFlight: c.peakInFlight,
		TotalStarts:  c.totalStarts,
		Timeouts:     c.timeouts,
		ExitCodes:    make(map[int]int64, len(c.exitCodes)),
	}
	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}
	c.mu.Unlock()

	s.DurationP50 = c.durations.Quantile(0.50)
	s.DurationP95 = c.durations.Quantile(0.95)
	s.DurationP99 = c.durations.Quantile(0.99)
	return s
}

// PeakInFlight returns the highest number of concurrently running processes.
func (c *Collector) PeakInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakInFlight
}

// TotalStarts returns the total number of process starts.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}
