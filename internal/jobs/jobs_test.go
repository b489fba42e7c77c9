package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/randomizedcoder/go-procbatch/internal/process"
)

func boolPtr(b bool) *bool { return &b }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// Parse
// =============================================================================

const sampleFile = `
defaults:
  timeout: 30s
  env:
    SHARED: file
    LEVEL: file
jobs:
  - name: unit
    args: [go, test, ./...]
  - args: [golangci-lint, run]
    timeout: 2m
    capture: false
    env:
      LEVEL: job
  - name: vet
    args: [go, vet, ./...]
    dir: /src
    no_error: true
`

func TestParse_AppliesDefaults(t *testing.T) {
	base := Defaults{
		Dir:     "/work",
		Env:     map[string]string{"BASE": "flag", "SHARED": "flag"},
		Timeout: time.Minute,
		Capture: boolPtr(true),
	}

	f, err := Parse([]byte(sampleFile), base)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Job{
		{
			Name:    "unit",
			Args:    []string{"go", "test", "./..."},
			Dir:     "/work",
			Env:     map[string]string{"BASE": "flag", "SHARED": "file", "LEVEL": "file"},
			Timeout: 30 * time.Second,
			Capture: boolPtr(true),
		},
		{
			Name:    "golangci-lint run",
			Args:    []string{"golangci-lint", "run"},
			Dir:     "/work",
			Env:     map[string]string{"BASE": "flag", "SHARED": "file", "LEVEL": "job"},
			Timeout: 2 * time.Minute,
			Capture: boolPtr(false),
		},
		{
			Name:    "vet",
			Args:    []string{"go", "vet", "./..."},
			Dir:     "/src",
			Env:     map[string]string{"BASE": "flag", "SHARED": "file", "LEVEL": "file"},
			Timeout: 30 * time.Second,
			Capture: boolPtr(true),
			NoError: true,
		},
	}
	if diff := cmp.Diff(want, f.Jobs); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CaptureDefaultsOn(t *testing.T) {
	f, err := Parse([]byte("jobs:\n  - args: [true]\n"), Defaults{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	inv := f.Jobs[0].Invocation()
	if !inv.Capture {
		t.Error("Capture should default to true")
	}
	if inv.Env != nil {
		t.Errorf("Env = %v, want nil", inv.Env)
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{"no jobs", "jobs: []\n", "no jobs"},
		{"empty args", "jobs:\n  - name: x\n    args: []\n", "no arguments"},
		{"empty program", "jobs:\n  - args: ['']\n", "no arguments"},
		{"unknown field", "jobs:\n  - args: [ls]\n    cmd: ls\n", "cmd"},
		{"bad duration", "jobs:\n  - args: [ls]\n    timeout: soon\n", "time.Duration"},
		{"negative timeout", "jobs:\n  - args: [ls]\n    timeout: -1s\n", "negative"},
		{"not yaml", "jobs: [", "parse"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.content), Defaults{})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestParse_EmptyArgsIsErrEmptyArgs(t *testing.T) {
	_, err := Parse([]byte("jobs:\n  - args: []\n"), Defaults{})
	if !errors.Is(err, process.ErrEmptyArgs) {
		t.Errorf("error = %v, want ErrEmptyArgs", err)
	}
	_, err = Parse([]byte("jobs: []\n"), Defaults{})
	if !errors.Is(err, ErrNoJobs) {
		t.Errorf("error = %v, want ErrNoJobs", err)
	}
}

// =============================================================================
// Load / FromCommand
// =============================================================================

func TestLoad(t *testing.T) {
	path := writeFile(t, "jobs.yaml", sampleFile)

	f, err := Load(path, Defaults{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Path != path {
		t.Errorf("Path = %q, want %q", f.Path, path)
	}
	if len(f.Jobs) != 3 {
		t.Errorf("len(Jobs) = %d, want 3", len(f.Jobs))
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), Defaults{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestFromCommand(t *testing.T) {
	f, err := FromCommand([]string{"sh", "-c", "exit 0"}, Defaults{
		Timeout: time.Second,
		Capture: boolPtr(false),
		Env:     map[string]string{"A": "1"},
	})
	if err != nil {
		t.Fatalf("FromCommand() error = %v", err)
	}

	want := process.Invocation{
		Args:    []string{"sh", "-c", "exit 0"},
		Env:     map[string]string{"A": "1"},
		Capture: false,
		Timeout: time.Second,
	}
	if diff := cmp.Diff([]process.Invocation{want}, f.Invocations()); diff != "" {
		t.Errorf("invocations mismatch (-want +got):\n%s", diff)
	}
	if f.Jobs[0].Name != "sh -c exit 0" {
		t.Errorf("Name = %q", f.Jobs[0].Name)
	}

	if _, err := FromCommand(nil, Defaults{}); err == nil {
		t.Error("FromCommand(nil) should fail")
	}
}

func TestExecutables(t *testing.T) {
	f, err := Parse([]byte(sampleFile), Defaults{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if diff := cmp.Diff([]string{"go", "golangci-lint"}, f.Executables()); diff != "" {
		t.Errorf("Executables mismatch (-want +got):\n%s", diff)
	}
}
