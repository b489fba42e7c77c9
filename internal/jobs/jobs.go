// Package jobs loads batch job files and records per-job results.
//
// A job file is YAML:
//
//	defaults:
//	  timeout: 30s
//	  capture: true
//	  env: {GOFLAGS: -mod=mod}
//	jobs:
//	  - name: unit
//	    args: [go, test, ./...]
//	  - name: lint
//	    args: [golangci-lint, run]
//	    timeout: 2m
//
// Fields set on a job override the file defaults, which override the
// defaults given by the caller (normally the command-line flags).
package jobs

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/go-procbatch/internal/process"
)

// ErrNoJobs is returned when a job file lists no jobs.
var ErrNoJobs = errors.New("jobs: no jobs defined")

// Defaults are settings applied to every job that does not set them.
type Defaults struct {
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
	Capture *bool             `yaml:"capture"`
	NoError bool              `yaml:"no_error"`
}

// Job is one command in a batch.
type Job struct {
	Name    string            `yaml:"name"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	Timeout time.Duration     `yaml:"timeout"`
	Capture *bool             `yaml:"capture"`

	// NoError treats a non-zero exit as a result rather than a failure.
	NoError bool `yaml:"no_error"`
}

// File is a parsed job file with defaults applied to every job.
type File struct {
	Path     string   `yaml:"-"`
	Defaults Defaults `yaml:"defaults"`
	Jobs     []Job    `yaml:"jobs"`
}

// Load reads and parses a job file. base supplies defaults for anything
// the file leaves unset.
func Load(path string, base Defaults) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	f, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Parse parses job file contents. See Load.
func Parse(data []byte, base Defaults) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, ErrNoJobs
	}

	f.Defaults = mergeDefaults(f.Defaults, base)
	for i := range f.Jobs {
		if err := f.Jobs[i].resolve(i, f.Defaults); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// FromCommand builds a single-job File from a command line.
func FromCommand(args []string, base Defaults) (*File, error) {
	f := &File{
		Defaults: mergeDefaults(Defaults{}, base),
		Jobs:     []Job{{Args: args}},
	}
	if err := f.Jobs[0].resolve(0, f.Defaults); err != nil {
		return nil, err
	}
	return f, nil
}

// mergeDefaults fills unset fields of d from base. Env keys in d win.
func mergeDefaults(d, base Defaults) Defaults {
	if d.Dir == "" {
		d.Dir = base.Dir
	}
	if d.Timeout == 0 {
		d.Timeout = base.Timeout
	}
	if d.Capture == nil {
		d.Capture = base.Capture
	}
	if !d.NoError {
		d.NoError = base.NoError
	}
	d.Env = mergeEnv(base.Env, d.Env)
	return d
}

// mergeEnv returns base overlaid with top, or nil if both are empty.
func mergeEnv(base, top map[string]string) map[string]string {
	if len(base) == 0 && len(top) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(top))
	maps.Copy(out, base)
	maps.Copy(out, top)
	return out
}

func (j *Job) resolve(index int, d Defaults) error {
	if len(j.Args) == 0 || j.Args[0] == "" {
		return fmt.Errorf("job %d (%q): %w", index, j.Name, process.ErrEmptyArgs)
	}
	if j.Timeout < 0 {
		return fmt.Errorf("job %d (%q): timeout must not be negative", index, j.Name)
	}
	if j.Name == "" {
		j.Name = strings.Join(j.Args, " ")
	}
	if j.Dir == "" {
		j.Dir = d.Dir
	}
	if j.Timeout == 0 {
		j.Timeout = d.Timeout
	}
	if j.Capture == nil {
		capture := true
		if d.Capture != nil {
			capture = *d.Capture
		}
		j.Capture = &capture
	}
	if !j.NoError {
		j.NoError = d.NoError
	}
	j.Env = mergeEnv(d.Env, j.Env)
	return nil
}

// Invocation converts a resolved job to a process.Invocation.
func (j Job) Invocation() process.Invocation {
	return process.Invocation{
		Args:    j.Args,
		Dir:     j.Dir,
		Env:     j.Env,
		Capture: j.Capture == nil || *j.Capture,
		Timeout: j.Timeout,
	}
}

// Invocations returns one invocation per job, in file order.
func (f *File) Invocations() []process.Invocation {
	out := make([]process.Invocation, len(f.Jobs))
	for i, j := range f.Jobs {
		out[i] = j.Invocation()
	}
	return out
}

// Executables returns the distinct programs the jobs run, in first-use
// order.
func (f *File) Executables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, j := range f.Jobs {
		exe := j.Args[0]
		if !seen[exe] {
			seen[exe] = true
			out = append(out, exe)
		}
	}
	return out
}
