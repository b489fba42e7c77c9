package stats

import (
	"math"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// DurationDigest tracks a distribution of durations with bounded memory.
// Safe for concurrent use.
type DurationDigest struct {
	mu    sync.Mutex
	td    *tdigest.TDigest
	count int
	max   time.Duration
	sum   time.Duration
}

// NewDurationDigest creates an empty digest (~100 centroids).
func NewDurationDigest() *DurationDigest {
	return &DurationDigest{td: tdigest.NewWithCompression(100)}
}

// Add records one duration.
func (d *DurationDigest) Add(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.td.Add(dur.Seconds(), 1)
	d.count++
	d.sum += dur
	if dur > d.max {
		d.max = dur
	}
}

// Quantile returns the estimated q-quantile (0..1). Zero when empty.
func (d *DurationDigest) Quantile(q float64) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return 0
	}
	v := d.td.Quantile(q)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// Count returns the number of recorded durations.
func (d *DurationDigest) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Max returns the largest recorded duration.
func (d *DurationDigest) Max() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.max
}

// Mean returns the average recorded duration.
func (d *DurationDigest) Mean() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count == 0 {
		return 0
	}
	return d.sum / time.Duration(d.count)
}
