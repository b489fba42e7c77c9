// Package main provides the procbatch CLI entry point.
//
// procbatch runs a batch of commands on a fault-tolerant worker pool,
// streaming each command's output into the log as it is produced.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-procbatch/internal/batch"
	"github.com/randomizedcoder/go-procbatch/internal/config"
	"github.com/randomizedcoder/go-procbatch/internal/jobs"
	"github.com/randomizedcoder/go-procbatch/internal/logging"
	"github.com/randomizedcoder/go-procbatch/internal/metrics"
	"github.com/randomizedcoder/go-procbatch/internal/pool"
	"github.com/randomizedcoder/go-procbatch/internal/preflight"
	"github.com/randomizedcoder/go-procbatch/internal/process"
	"github.com/randomizedcoder/go-procbatch/internal/stats"
	"github.com/randomizedcoder/go-procbatch/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/procbatch
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("procbatch %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 2
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", cfg.LogLevel)
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}

	file, err := loadJobs(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading jobs: %v\n", err)
		return 2
	}

	if cfg.PrintCmd {
		printCommands(os.Stdout, file)
		return 0
	}

	if !cfg.SkipPreflight || cfg.Check {
		result := preflight.RunAll(preflight.Input{
			Workers:     cfg.Workers,
			Executables: file.Executables(),
			Dirs:        jobDirs(file),
		})
		preflight.PrintResults(os.Stderr, result)
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "preflight checks failed (use -skip-preflight to override)")
			return 1
		}
	}

	if cfg.Check {
		logger.Info("check_passed", "jobs", len(file.Jobs), "workers", cfg.Workers)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cfg, file, logger)
}

// loadJobs builds the job file from -jobs or the positional command,
// applying flag-level defaults.
func loadJobs(cfg *config.Config) (*jobs.File, error) {
	capture := cfg.Capture
	base := jobs.Defaults{
		Timeout: cfg.Timeout,
		Capture: &capture,
		Env:     cfg.EnvMap(),
	}
	if cfg.JobsFile != "" {
		return jobs.Load(cfg.JobsFile, base)
	}
	return jobs.FromCommand(cfg.Command, base)
}

func jobDirs(f *jobs.File) []string {
	dirs := make([]string, 0, len(f.Jobs))
	for _, j := range f.Jobs {
		if j.Dir != "" {
			dirs = append(dirs, j.Dir)
		}
	}
	return dirs
}

// printCommands prints the command line of every job.
func printCommands(w io.Writer, f *jobs.File) {
	fmt.Fprintf(w, "# %d job(s) that would be run:\n\n", len(f.Jobs))
	for _, j := range f.Jobs {
		fmt.Fprintf(w, "%-24s %s\n", j.Name, j.Invocation().String())
	}
}

// execute wires metrics, the dashboard and the result sink around a
// batch.Runner and runs the batch. It returns the process exit code.
func execute(ctx context.Context, cfg *config.Config, file *jobs.File, logger *slog.Logger) int {
	logger.Info("starting",
		"version", version,
		"jobs", len(file.Jobs),
		"workers", cfg.Workers,
		"mode", pool.ModeFor(cfg.FailFast, cfg.ByCommand).String(),
		"metrics_addr", cfg.MetricsAddr,
	)

	var (
		observer  process.Observer
		callbacks []pool.Callbacks
		collector *metrics.Collector
		server    *metrics.Server
	)
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector(metrics.CollectorConfig{
			Version: version,
			Workers: cfg.Workers,
		})
		observer = collector
		callbacks = append(callbacks, collector.Callbacks())

		server = metrics.NewServer(cfg.MetricsAddr, logger)
		if err := server.Start(); err != nil {
			logger.Error("metrics_server_failed", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics_shutdown_error", "error", err)
			}
		}()
	}

	echoEnabled := !cfg.Quiet && !cfg.TUIEnabled
	var echo *logging.Echo
	if echoEnabled {
		echo = logging.NewEcho(os.Stderr)
	}

	var results *jobs.ResultWriter
	if cfg.ResultsFile != "" {
		w, err := jobs.NewResultWriter(cfg.ResultsFile)
		if err != nil {
			logger.Error("results_open_failed", "path", cfg.ResultsFile, "error", err)
			return 1
		}
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("results_close_error", "error", err)
			}
		}()
		results = w
	}

	var program *tea.Program
	if cfg.TUIEnabled {
		model := tui.New(tui.Config{Workers: cfg.Workers, MetricsAddr: cfg.MetricsAddr})
		program = tea.NewProgram(model, tea.WithAltScreen())
		names := make([]string, len(file.Jobs))
		for i, j := range file.Jobs {
			names[i] = j.Name
		}
		callbacks = append(callbacks, tui.Callbacks(program, names))
	}

	runner, err := batch.New(batch.Config{
		Process: process.New(process.Config{
			Logger:   logger,
			Observer: observer,
			Echo:     echo,
		}),
		Logger:    logger,
		Results:   results,
		Callbacks: pool.Chain(callbacks...),
		Workers:   cfg.Workers,
		Echo:      echoEnabled,
		Progress:  cfg.Verbose,
		Debug:     cfg.Debug,
		FailFast:  cfg.FailFast,
		ByCommand: cfg.ByCommand,
	})
	if err != nil {
		logger.Error("batch_setup_failed", "error", err)
		return 1
	}

	report, err := runBatch(ctx, runner, file, program)
	if err != nil {
		logger.Error("batch_failed", "error", err)
		return 1
	}

	if collector != nil {
		ms := collector.GenerateSummary()
		logger.Info("process_summary",
			"starts", ms.TotalStarts,
			"peak_in_flight", ms.PeakInFlight,
			"timeouts", ms.Timeouts,
			"p50", ms.DurationP50.String(),
			"p95", ms.DurationP95.String(),
			"p99", ms.DurationP99.String(),
		)
	}

	summary := report.Summary()
	if server != nil {
		summary.MetricsAddr = server.Addr()
	}
	fmt.Fprint(os.Stderr, stats.FormatExitSummary(summary))

	if report.Err != nil {
		var agg *pool.AggregateError
		if errors.As(report.Err, &agg) {
			logger.Error("batch_aborted", "index", agg.Index, "error", agg.Err.Detail())
		} else {
			logger.Error("batch_aborted", "error", report.Err)
		}
	}

	if !report.OK() {
		return 1
	}
	return 0
}

// runBatch runs the batch, driving the dashboard when program is set.
// Quitting the dashboard cancels the batch context.
func runBatch(ctx context.Context, runner *batch.Runner, file *jobs.File, program *tea.Program) (*batch.Report, error) {
	if program == nil {
		return runner.Run(ctx, file)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		report *batch.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := runner.Run(ctx, file)
		done <- outcome{report, err}
		tui.SendQuit(program)
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}

	cancel()
	out := <-done
	return out.report, out.err
}
