package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/randomizedcoder/go-procbatch/internal/process"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with an isolated registry.
func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{Version: "test", Workers: 4}, registry)
	return c, registry
}

// =============================================================================
// Tests: NewCollector
// =============================================================================

func TestNewCollector_Registers(t *testing.T) {
	_, registry := newTestCollector(t)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"procbatch_info",
		"procbatch_batch_jobs",
		"procbatch_processes_running",
		"procbatch_process_starts_total",
		"procbatch_process_timeouts_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewCollector_Info(t *testing.T) {
	c, _ := newTestCollector(t)
	if got := testutil.ToFloat64(c.info.WithLabelValues("test", "4")); got != 1 {
		t.Errorf("procbatch_info = %v, want 1", got)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewCollectorWithRegistry(CollectorConfig{}, registry)

	defer func() {
		if recover() == nil {
			t.Error("second registration did not panic")
		}
	}()
	NewCollectorWithRegistry(CollectorConfig{}, registry)
}

// =============================================================================
// Tests: process.Observer
// =============================================================================

func TestCollector_ProcessLifecycle(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ProcessStarted()
	c.ProcessStarted()
	if got := testutil.ToFloat64(c.inFlight); got != 2 {
		t.Errorf("running = %v, want 2", got)
	}

	c.ProcessFinished(process.Exit{}, 10*time.Millisecond)
	c.ProcessFinished(process.Exit{Code: process.TimeoutExitCode, TimedOut: true}, time.Second)

	if got := testutil.ToFloat64(c.inFlight); got != 0 {
		t.Errorf("running = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.processStarts); got != 2 {
		t.Errorf("starts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.processTimeouts); got != 1 {
		t.Errorf("timeouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.processExits.WithLabelValues("success")); got != 1 {
		t.Errorf("exits{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.processExits.WithLabelValues("timeout")); got != 1 {
		t.Errorf("exits{timeout} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.processDuration); got != 1 {
		t.Errorf("duration histogram series = %d, want 1", got)
	}
}

func TestCollector_LineCaptured(t *testing.T) {
	c, _ := newTestCollector(t)

	c.LineCaptured(process.StreamStdout)
	c.LineCaptured(process.StreamStdout)
	c.LineCaptured(process.StreamStderr)

	if got := testutil.ToFloat64(c.outputLines.WithLabelValues("stdout")); got != 2 {
		t.Errorf("lines{stdout} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.outputLines.WithLabelValues("stderr")); got != 1 {
		t.Errorf("lines{stderr} = %v, want 1", got)
	}
}

func TestExitCategory(t *testing.T) {
	tests := []struct {
		exit process.Exit
		want string
	}{
		{process.Exit{Code: 0}, "success"},
		{process.Exit{Code: 1}, "error"},
		{process.Exit{Code: 127}, "error"},
		{process.Exit{Code: 200}, "error"},
		{process.Exit{Code: 255}, "error"},
		{process.Exit{Code: 137, Signaled: true}, "signal"},
		{process.Exit{Code: process.TimeoutExitCode, TimedOut: true}, "timeout"},
	}
	for _, tt := range tests {
		if got := exitCategory(tt.exit); got != tt.want {
			t.Errorf("exitCategory(%+v) = %q, want %q", tt.exit, got, tt.want)
		}
	}
}

// =============================================================================
// Tests: pool callbacks
// =============================================================================

func TestCollector_Callbacks(t *testing.T) {
	c, _ := newTestCollector(t)
	cb := c.Callbacks()

	cb.OnStart("run", 4)
	if got := testutil.ToFloat64(c.jobsTotal); got != 4 {
		t.Errorf("jobs = %v, want 4", got)
	}

	cb.OnProgress(1, 4)
	cb.OnProgress(2, 4)
	if got := testutil.ToFloat64(c.progress); got != 0.5 {
		t.Errorf("progress = %v, want 0.5", got)
	}

	cb.OnItemDone(0, true, time.Millisecond)
	cb.OnItemDone(1, false, time.Millisecond)
	cb.OnItemDone(2, true, time.Millisecond)
	if got := testutil.ToFloat64(c.tasks.WithLabelValues("ok")); got != 2 {
		t.Errorf("tasks{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.tasks.WithLabelValues("failed")); got != 1 {
		t.Errorf("tasks{failed} = %v, want 1", got)
	}

	cb.OnFinish(3 * time.Second)
	if got := testutil.ToFloat64(c.elapsed); got != 3 {
		t.Errorf("elapsed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.batchesDone); got != 1 {
		t.Errorf("batches = %v, want 1", got)
	}
}

// =============================================================================
// Tests: Summary
// =============================================================================

func TestCollector_GenerateSummary(t *testing.T) {
	c, _ := newTestCollector(t)

	for i := 0; i < 3; i++ {
		c.ProcessStarted()
	}
	c.ProcessFinished(process.Exit{}, 100*time.Millisecond)
	c.ProcessFinished(process.Exit{Code: 1}, 200*time.Millisecond)
	c.ProcessFinished(process.Exit{Code: process.TimeoutExitCode, TimedOut: true}, 300*time.Millisecond)

	s := c.GenerateSummary()
	if s.TotalStarts != 3 {
		t.Errorf("TotalStarts = %d, want 3", s.TotalStarts)
	}
	if s.PeakInFlight != 3 {
		t.Errorf("PeakInFlight = %d, want 3", s.PeakInFlight)
	}
	if s.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", s.Timeouts)
	}
	if s.ExitCodes[0] != 1 || s.ExitCodes[1] != 1 || s.ExitCodes[-1] != 1 {
		t.Errorf("ExitCodes = %v", s.ExitCodes)
	}
	if s.DurationP50 <= 0 || s.DurationP99 < s.DurationP50 {
		t.Errorf("percentiles P50=%v P99=%v", s.DurationP50, s.DurationP99)
	}
}

func TestCollector_GenerateSummary_Empty(t *testing.T) {
	c, _ := newTestCollector(t)

	s := c.GenerateSummary()
	if s.TotalStarts != 0 || len(s.ExitCodes) != 0 || s.DurationP95 != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}

func TestCollector_ThreadSafety(t *testing.T) {
	c, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(code int) {
			defer wg.Done()
			c.ProcessStarted()
			c.LineCaptured(process.StreamStdout)
			c.ProcessFinished(process.Exit{Code: code % 3}, time.Millisecond)
			_ = c.GenerateSummary()
		}(i)
	}
	wg.Wait()

	if got := c.TotalStarts(); got != 50 {
		t.Errorf("TotalStarts() = %d, want 50", got)
	}
	if got := c.PeakInFlight(); got < 1 || got > 50 {
		t.Errorf("PeakInFlight() = %d, want 1..50", got)
	}
}
