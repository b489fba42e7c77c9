package process

import (
	"sync"
	"time"
)

// lineQueue is an unbounded FIFO of output lines with a single consumer.
//
// Unlike a buffered channel it never blocks or drops on Push, so a chatty
// child can't stall on a full pipe while the controller is busy.
type lineQueue struct {
	mu     sync.Mutex
	lines  []string
	head   int
	closed bool

	// notify has capacity 1; Push and Close signal it without blocking.
	notify    chan struct{}
	closeOnce sync.Once
}

func newLineQueue() *lineQueue {
	return &lineQueue{notify: make(chan struct{}, 1)}
}

// Push appends a line. Lines pushed after Close are ignored.
func (q *lineQueue) Push(line string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.lines = append(q.lines, line)
	q.mu.Unlock()

	q.signal()
}

// TryPop removes the oldest line without blocking.
func (q *lineQueue) TryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.lines) {
		return "", false
	}
	line := q.lines[q.head]
	q.lines[q.head] = ""
	q.head++
	if q.head == len(q.lines) {
		q.lines = q.lines[:0]
		q.head = 0
	}
	return line, true
}

// PopWait removes the oldest line, waiting up to d for one to arrive.
// It returns false on timeout or when the queue is closed and empty.
func (q *lineQueue) PopWait(d time.Duration) (string, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		if line, ok := q.TryPop(); ok {
			return line, true
		}
		if q.isClosed() {
			// A Push may have landed between TryPop and the check.
			return q.TryPop()
		}
		select {
		case <-q.notify:
		case <-timer.C:
			return q.TryPop()
		}
	}
}

// Close marks the end of the stream. Safe to call multiple times.
func (q *lineQueue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.signal()
	})
}

// Len returns the number of lines not yet popped.
func (q *lineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines) - q.head
}

func (q *lineQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *lineQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
