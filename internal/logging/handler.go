package logging

import (
	"context"
	"log/slog"
	"strings"
)

// MaxLineLength is the maximum length of a logged output line before truncation.
// Captured text is never truncated, only the log record.
const MaxLineLength = 4096

// StreamLogger forwards lines of a child process stream to a slog.Logger
// at a fixed level. Stdout lines go out at info, stderr lines at warn.
type StreamLogger struct {
	logger *slog.Logger
	stream string
	level  slog.Level
	attrs  []any
}

// NewStreamLogger creates a logger for one stream. Extra attrs are appended
// to every record (for example the command or job name).
func NewStreamLogger(logger *slog.Logger, stream string, level slog.Level, attrs ...any) *StreamLogger {
	if logger == nil {
		logger = Discard()
	}
	return &StreamLogger{
		logger: logger,
		stream: stream,
		level:  level,
		attrs:  attrs,
	}
}

// HandleLine logs a single line. Trailing whitespace, including the
// newline kept by the reader, is stripped.
func (h *StreamLogger) HandleLine(line string) {
	line = strings.TrimRight(line, " \t\r\n")
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	args := make([]any, 0, 4+len(h.attrs))
	args = append(args, "stream", h.stream, "line", line)
	args = append(args, h.attrs...)
	h.logger.Log(context.Background(), h.level, "process_output", args...)
}
