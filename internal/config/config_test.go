package config

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// =============================================================================
// Helpers
// =============================================================================

func parse(t *testing.T, args ...string) *Config {
	t.Helper()
	fs := flag.NewFlagSet("procbatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := ParseArgs(fs, args)
	if err != nil {
		t.Fatalf("ParseArgs(%q) error = %v", args, err)
	}
	return cfg
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.JobsFile = "jobs.yaml"
	return cfg
}

// =============================================================================
// envList
// =============================================================================

func TestEnvList_Set(t *testing.T) {
	var e envList

	if err := e.Set("A=1"); err != nil {
		t.Errorf("Set returned error: %v", err)
	}
	if err := e.Set("B="); err != nil {
		t.Errorf("Set with empty value returned error: %v", err)
	}
	if err := e.Set("novalue"); err == nil {
		t.Error("Set without '=' should fail")
	}
	if diff := cmp.Diff(envList{"A=1", "B="}, e); diff != "" {
		t.Errorf("envList mismatch (-want +got):\n%s", diff)
	}
	if e.String() != "A=1, B=" {
		t.Errorf("String() = %q", e.String())
	}
}

// =============================================================================
// ParseArgs
// =============================================================================

func TestParseArgs_Defaults(t *testing.T) {
	cfg := parse(t)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArgs_AllFlags(t *testing.T) {
	cfg := parse(t,
		"-jobs", "build.yaml",
		"-env", "A=1", "-env", "B=2",
		"-workers", "8",
		"-timeout", "30s",
		"-capture=false",
		"-fail-fast",
		"-by-command",
		"-metrics", "127.0.0.1:9000",
		"-v",
		"-quiet",
		"-log-format", "text",
		"-log-level", "debug",
		"-tui",
		"-results", "out.jsonl",
		"-skip-preflight",
	)

	want := DefaultConfig()
	want.JobsFile = "build.yaml"
	want.Env = []string{"A=1", "B=2"}
	want.Workers = 8
	want.Timeout = 30 * time.Second
	want.Capture = false
	want.FailFast = true
	want.ByCommand = true
	want.MetricsAddr = "127.0.0.1:9000"
	want.Verbose = true
	want.Quiet = true
	want.LogFormat = "text"
	want.LogLevel = "debug"
	want.TUIEnabled = true
	want.ResultsFile = "out.jsonl"
	want.SkipPreflight = true

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArgs_PositionalCommand(t *testing.T) {
	cfg := parse(t, "-timeout", "1s", "--", "sh", "-c", "echo hi")
	if diff := cmp.Diff([]string{"sh", "-c", "echo hi"}, cfg.Command); diff != "" {
		t.Errorf("Command mismatch (-want +got):\n%s", diff)
	}
	if !cfg.HasJobs() {
		t.Error("HasJobs() = false with a positional command")
	}
}

func TestParseArgs_BadFlag(t *testing.T) {
	fs := flag.NewFlagSet("procbatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseArgs(fs, []string{"-env", "broken"}); err == nil {
		t.Error("expected error for malformed -env")
	}
}

func TestUsage_ListsCategories(t *testing.T) {
	var buf bytes.Buffer
	fs := flag.NewFlagSet("procbatch", flag.ContinueOnError)
	fs.SetOutput(&buf)
	if _, err := ParseArgs(fs, []string{"-h"}); err != flag.ErrHelp {
		t.Fatalf("ParseArgs(-h) error = %v, want flag.ErrHelp", err)
	}

	out := buf.String()
	for _, want := range []string{"Execution:", "-workers int", "-timeout duration", "-fail-fast\n", "Examples:"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestFlagType(t *testing.T) {
	fs := flag.NewFlagSet("types", flag.ContinueOnError)
	fs.Bool("b", false, "")
	fs.Int("i", 1, "")
	fs.Duration("d", time.Second, "")
	fs.String("s", "", "")
	var e envList
	fs.Var(&e, "e", "")

	testCases := map[string]string{
		"b": "",
		"i": "int",
		"d": "duration",
		"s": "string",
		"e": "value",
	}
	for name, want := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := flagType(fs.Lookup(name)); got != want {
				t.Errorf("flagType(-%s) = %q, want %q", name, got, want)
			}
		})
	}
}

// =============================================================================
// DefaultConfig
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", cfg.Workers)
	}
	if !cfg.Capture {
		t.Error("Capture should be true by default")
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 (none)", cfg.Timeout)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "info" {
		t.Errorf("log = %s/%s, want json/info", cfg.LogFormat, cfg.LogLevel)
	}
	if cfg.HasJobs() {
		t.Error("HasJobs() = true for default config")
	}
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Valid config should not error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing jobs", func(c *Config) { c.JobsFile = "" }, "jobs"},
		{"jobs and command", func(c *Config) { c.Command = []string{"true"} }, "jobs"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative workers", func(c *Config) { c.Workers = -3 }, "workers"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"bad env", func(c *Config) { c.Env = []string{"=x"} }, "env"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "nope" }, "metrics_addr"},
		{"tui with debug", func(c *Config) { c.TUIEnabled = true; c.Debug = true }, "tui"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.field+":") {
				t.Errorf("error should mention %s: %v", tc.field, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"jobs:", "workers:", "log_format:"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should mention %s: %v", field, err)
		}
	}
}

func TestValidate_CommandOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Command = []string{"echo", "hi"}
	if err := Validate(cfg); err != nil {
		t.Errorf("command-only config should be valid: %v", err)
	}
}

func TestEnvMap(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.EnvMap() != nil {
		t.Error("EnvMap() should be nil without -env")
	}

	cfg.Env = []string{"A=1", "B=x=y", "A=2"}
	want := map[string]string{"A": "2", "B": "x=y"}
	if diff := cmp.Diff(want, cfg.EnvMap()); diff != "" {
		t.Errorf("EnvMap mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := validConfig()
	cfg.TUIEnabled = true
	ApplyCheckMode(cfg)
	if cfg.TUIEnabled || !cfg.Verbose {
		t.Errorf("check mode = tui:%v verbose:%v, want false/true", cfg.TUIEnabled, cfg.Verbose)
	}
}
