// Package timeseries tracks event rates over rolling time windows.
//
// The batch dashboard uses it for job completions per second. Add is
// lock-free; Sample and Rates take the ring buffer lock.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringSize is the number of samples kept (two minutes at one per second).
	ringSize = 120

	shortWindow = 10 * time.Second
	longWindow  = 60 * time.Second
)

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// point is the cumulative count at an instant.
type point struct {
	at    time.Time
	count int64
}

// RateTracker counts events and reports their rate over the last 10 and 60
// seconds and since creation.
type RateTracker struct {
	total atomic.Int64

	mu    sync.RWMutex
	ring  []point
	next  int
	start time.Time
	clock Clock
}

// Rates is a snapshot of a RateTracker, in events per second.
type Rates struct {
	Total   int64
	Overall float64
	Last10s float64
	Last60s float64
}

// NewRateTracker creates a tracker using the wall clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker driven by clock.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	r := &RateTracker{
		ring:  make([]point, 0, ringSize),
		start: now,
		clock: clock,
	}
	r.ring = append(r.ring, point{at: now})
	return r
}

// Add records n events. Non-positive n is ignored.
func (r *RateTracker) Add(n int64) {
	if n > 0 {
		r.total.Add(n)
	}
}

// Sample stores the current count. Call it periodically.
func (r *RateTracker) Sample() {
	p := point{at: r.clock.Now(), count: r.total.Load()}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ring) < ringSize {
		r.ring = append(r.ring, p)
		return
	}
	r.ring[r.next] = p
	r.next = (r.next + 1) % ringSize
}

// Rates returns the current rates.
func (r *RateTracker) Rates() Rates {
	now := r.clock.Now()
	total := r.total.Load()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Rates{Total: total}
	if secs := now.Sub(r.start).Seconds(); secs > 0 {
		out.Overall = float64(total) / secs
	}
	out.Last10s = r.rateSince(now, total, shortWindow)
	out.Last60s = r.rateSince(now, total, longWindow)
	return out
}

// rateSince uses the newest sample at or before now-window, or the oldest
// sample when history is shorter than the window. Caller holds mu.
func (r *RateTracker) rateSince(now time.Time, total int64, window time.Duration) float64 {
	cutoff := now.Add(-window)

	var base *point
	for i := range r.ring {
		p := &r.ring[i]
		if p.at.After(cutoff) {
			continue
		}
		if base == nil || p.at.After(base.at) {
			base = p
		}
	}
	if base == nil {
		base = r.oldest()
	}

	secs := now.Sub(base.at).Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(total-base.count) / secs
}

func (r *RateTracker) oldest() *point {
	if len(r.ring) < ringSize {
		return &r.ring[0]
	}
	return &r.ring[r.next]
}

// Samples returns the number of stored samples.
func (r *RateTracker) Samples() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ring)
}
