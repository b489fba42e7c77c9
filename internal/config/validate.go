package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/randomizedcoder/go-procbatch/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// A job source is required
	if !cfg.HasJobs() {
		errs = append(errs, ValidationError{
			Field:   "jobs",
			Message: "a job file (-jobs) or a command after -- is required",
		})
	}
	if cfg.JobsFile != "" && len(cfg.Command) > 0 {
		errs = append(errs, ValidationError{
			Field:   "jobs",
			Message: "-jobs and a positional command are mutually exclusive",
		})
	}

	// Workers must be positive
	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "must be at least 1",
		})
	}

	// Timeout must not be negative
	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must not be negative (0 = none)",
		})
	}

	// Env overrides must be KEY=VALUE
	for _, kv := range cfg.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			errs = append(errs, ValidationError{
				Field:   "env",
				Message: fmt.Sprintf("expected KEY=VALUE (got %q)", kv),
			})
		}
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	// Metrics address must be host:port if set
	if cfg.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	// The dashboard owns the terminal; debug mode logs every item to it.
	if cfg.TUIEnabled && cfg.Debug {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "-tui cannot be combined with -debug",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ApplyCheckMode modifies config for -check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.TUIEnabled = false
	cfg.Verbose = true
}

// EnvMap returns the -env overrides as a map. Later flags win.
func (c *Config) EnvMap() map[string]string {
	if len(c.Env) == 0 {
		return nil
	}
	m := make(map[string]string, len(c.Env))
	for _, kv := range c.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
