package jobs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TimestampFormat is the UTC timestamp layout used in result records.
const TimestampFormat = "2006-01-02T15:04:05Z"

// Record is one line of a results file.
type Record struct {
	RunID     string  `json:"run_id"`
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	OK        bool    `json:"ok"`
	ExitCode  *int    `json:"exit_code,omitempty"`
	TimedOut  bool    `json:"timed_out,omitempty"`
	Error     string  `json:"error,omitempty"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Finished  string  `json:"finished"`
}

// ResultWriter appends one JSON object per line to a file. Safe for
// concurrent use.
type ResultWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	n   int
}

// NewResultWriter opens path for appending, creating it if needed.
func NewResultWriter(path string) (*ResultWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &ResultWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends rec, stamping Finished if it is empty.
func (w *ResultWriter) Write(rec Record) error {
	if rec.Finished == "" {
		rec.Finished = time.Now().UTC().Format(TimestampFormat)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *ResultWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close closes the underlying file.
func (w *ResultWriter) Close() error {
	return w.f.Close()
}

// ReadResults loads every record from a results file.
func ReadResults(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
