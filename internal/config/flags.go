package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// envList is a custom flag type for repeatable -env flags.
type envList []string

func (e *envList) String() string {
	return strings.Join(*e, ", ")
}

func (e *envList) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("expected KEY=VALUE, got %q", value)
	}
	*e = append(*e, value)
	return nil
}

// ParseFlags parses the process command line and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(flag.CommandLine, os.Args[1:])
}

// ParseArgs registers procbatch flags on fs, parses args, and returns the
// resulting Config. Positional arguments form an ad-hoc single job.
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()
	var env envList

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, `procbatch - run batches of commands on a fault-tolerant worker pool

Usage:
  procbatch [flags] -jobs <file.yaml>
  procbatch [flags] -- <command> [args...]

Jobs:
`)
		printFlagCategory(fs, out, []string{"jobs", "env"})

		fmt.Fprintf(out, "\nExecution:\n")
		printFlagCategory(fs, out, []string{"workers", "timeout", "capture", "fail-fast", "by-command", "debug"})

		fmt.Fprintf(out, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, out, []string{"print-cmd", "check", "skip-preflight"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"metrics", "v", "quiet", "log-format", "log-level"})

		fmt.Fprintf(out, "\nDashboard & Output:\n")
		printFlagCategory(fs, out, []string{"tui", "results"})

		fmt.Fprintf(out, `
Examples:
  # Run a job file on 8 workers, stop on the first failure
  procbatch -jobs build.yaml -workers 8 -fail-fast

  # One ad-hoc command with a 30s timeout
  procbatch -timeout 30s -- make test

  # Live dashboard with Prometheus metrics
  procbatch -jobs nightly.yaml -tui -metrics 127.0.0.1:17092

`)
	}

	// Jobs
	fs.StringVar(&cfg.JobsFile, "jobs", cfg.JobsFile, "YAML job file")
	fs.Var(&env, "env", "Set KEY=VALUE in every job's environment (can repeat)")

	// Execution
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of jobs to run concurrently")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Default per-job timeout (0 = none)")
	fs.BoolVar(&cfg.Capture, "capture", cfg.Capture, "Capture job output line by line into the log")
	fs.BoolVar(&cfg.FailFast, "fail-fast", cfg.FailFast, "Fail the batch on the first failed job (in job order)")
	fs.BoolVar(&cfg.ByCommand, "by-command", cfg.ByCommand, "Key results by job name instead of position")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Run jobs one at a time and stop at the first error")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print job command lines and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config, load jobs, run preflight checks, and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Do not echo commands or failure output")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)

	// Dashboard & Output
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")
	fs.StringVar(&cfg.ResultsFile, "results", cfg.ResultsFile, "Append one JSON line per job to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Env = env
	if rest := fs.Args(); len(rest) > 0 {
		cfg.Command = rest
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				label := f.Name
				if typ := flagType(f); typ != "" {
					label += " " + typ
				}
				fmt.Fprintf(out, "  -%s\n    \t%s", label, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return "value"
	}
	switch getter.Get().(type) {
	case bool:
		return ""
	case int:
		return "int"
	case time.Duration:
		return "duration"
	case string:
		return "string"
	default:
		return "value"
	}
}
