// Package config provides configuration management for procbatch.
package config

import (
	"runtime"
	"time"
)

// Config holds all configuration options for a batch run.
type Config struct {
	// Jobs
	JobsFile string   `json:"jobs_file"`
	Command  []string `json:"command"` // ad-hoc single job from positional args
	Env      []string `json:"env"`     // KEY=VALUE overrides applied to every job

	// Execution
	Workers   int           `json:"workers"`
	Timeout   time.Duration `json:"timeout"` // default per-job timeout, 0 = none
	Capture   bool          `json:"capture"`
	FailFast  bool          `json:"fail_fast"`
	ByCommand bool          `json:"by_command"`
	Debug     bool          `json:"debug"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = disabled
	Verbose     bool   `json:"verbose"`
	Quiet       bool   `json:"quiet"`
	LogFormat   string `json:"log_format"` // json, text
	LogLevel    string `json:"log_level"`
	TUIEnabled  bool   `json:"tui_enabled"`

	// Output
	ResultsFile string `json:"results_file"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Execution
		Workers: runtime.NumCPU(),
		Timeout: 0, // Unbounded
		Capture: true,

		// Observability
		MetricsAddr: "",
		Verbose:     false,
		LogFormat:   "json",
		LogLevel:    "info",
		TUIEnabled:  false,
	}
}

// HasJobs reports whether a job source was given.
func (c *Config) HasJobs() bool {
	return c.JobsFile != "" || len(c.Command) > 0
}
