package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := parseLevel(tc.input); got != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = false, want true", level)
		}
	}
	for _, level := range []string{"", "trace", "verbose"} {
		if ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = true, want false", level)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", "JSON", "", "invalid"} {
		t.Run(format, func(t *testing.T) {
			if NewLogger(format, "info", false) == nil {
				t.Error("NewLogger returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "json", "info")
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("expected JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("expected key/value in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "invalid", "info")
	logger.Info("test message", "key", "value")

	output := buf.String()
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Error("default format should be text, not JSON")
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	testCases := []struct {
		level   string
		dropped string
		kept    string
	}{
		{"info", "debug msg", "info msg"},
		{"warn", "info msg", "warn msg"},
		{"error", "warn msg", "error msg"},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(&buf, "text", tc.level)

			logger.Debug("debug msg")
			logger.Info("info msg")
			logger.Warn("warn msg")
			logger.Error("error msg")

			output := buf.String()
			if strings.Contains(output, tc.dropped) {
				t.Errorf("%s level should not log %q", tc.level, tc.dropped)
			}
			if !strings.Contains(output, tc.kept) {
				t.Errorf("%s level should log %q", tc.level, tc.kept)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(nil, slog.LevelError) {
		t.Error("Discard logger should not be enabled at error level")
	}
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))

	slog.Info("from default logger")
	if !strings.Contains(buf.String(), "from default logger") {
		t.Error("SetDefault did not set the default logger")
	}
}

// =============================================================================
// StreamLogger
// =============================================================================

func TestStreamLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "debug")

	out := NewStreamLogger(logger, "stdout", slog.LevelInfo, "job", "build")
	errs := NewStreamLogger(logger, "stderr", slog.LevelWarn)

	out.HandleLine("hello\n")
	errs.HandleLine("oops\r\n")

	output := buf.String()
	if !strings.Contains(output, "level=INFO msg=process_output stream=stdout line=hello job=build") {
		t.Errorf("stdout record missing, got: %s", output)
	}
	if !strings.Contains(output, "level=WARN msg=process_output stream=stderr line=oops") {
		t.Errorf("stderr record missing, got: %s", output)
	}
}

func TestStreamLogger_Truncation(t *testing.T) {
	var buf bytes.Buffer
	h := NewStreamLogger(NewLoggerWithWriter(&buf, "text", "info"), "stdout", slog.LevelInfo)

	h.HandleLine(strings.Repeat("x", MaxLineLength+100))

	if !strings.Contains(buf.String(), "...(truncated)") {
		t.Error("long line should be truncated in the log record")
	}
}

func TestStreamLogger_NilLogger(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("HandleLine with nil logger panicked: %v", r)
		}
	}()
	h := NewStreamLogger(nil, "stdout", slog.LevelInfo)
	h.HandleLine("ignored")
}

// =============================================================================
// Echo
// =============================================================================

func TestEcho_Command(t *testing.T) {
	var buf bytes.Buffer
	NewEcho(&buf).Command("echo hello")

	if got := strings.TrimSpace(buf.String()); got != "+ echo hello" {
		t.Errorf("Command() wrote %q, want %q", got, "+ echo hello")
	}
}

func TestEcho_Failure(t *testing.T) {
	var buf bytes.Buffer
	NewEcho(&buf).Failure("out line\n", "err line\n")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"STDOUT:", "out line", "STDERR:", "err line"}
	if len(lines) != len(want) {
		t.Fatalf("Failure() wrote %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if strings.TrimSpace(lines[i]) != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEcho_Nil(t *testing.T) {
	var e *Echo
	e.Command("noop")
	e.Failure("", "")
}
