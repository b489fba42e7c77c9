package process

import (
	"bufio"
	"errors"
	"io"
	"sync/atomic"
)

// streamReader copies raw lines from one child stream into a lineQueue.
// Lines keep their trailing newline so the accumulated text is exactly
// what the child wrote.
type streamReader struct {
	r      io.ReadCloser
	queue  *lineQueue
	stream Stream

	bytesRead atomic.Int64
	linesRead atomic.Int64
	err       atomic.Value
}

func newStreamReader(r io.ReadCloser, queue *lineQueue, stream Stream) *streamReader {
	return &streamReader{r: r, queue: queue, stream: stream}
}

// Run reads until end of stream, then closes both the stream and the
// queue. It runs in its own goroutine and is never cancelled; it ends when
// every writer of the pipe has exited.
func (s *streamReader) Run() {
	defer s.queue.Close()
	defer s.r.Close()

	br := bufio.NewReaderSize(s.r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.bytesRead.Add(int64(len(line)))
			s.linesRead.Add(1)
			s.queue.Push(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err.Store(err)
			}
			return
		}
	}
}

// Stats returns (bytesRead, linesRead).
func (s *streamReader) Stats() (bytesRead, linesRead int64) {
	return s.bytesRead.Load(), s.linesRead.Load()
}

// Err returns the read error that ended the stream, if it was not EOF.
func (s *streamReader) Err() error {
	if v := s.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}
