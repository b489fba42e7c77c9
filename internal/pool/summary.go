package pool

import (
	"time"

	"github.com/randomizedcoder/go-procbatch/internal/stats"
)

// Summary counts a finished batch and holds its per-item durations.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Panicked  int
	Durations *stats.DurationDigest
}

// Summarize builds a Summary from outcomes returned by Run.
func Summarize[Out any](outcomes []Outcome[Out]) Summary {
	s := Summary{
		Total:     len(outcomes),
		Durations: stats.NewDurationDigest(),
	}
	for _, o := range outcomes {
		s.Durations.Add(o.Elapsed)
		if o.OK {
			s.Succeeded++
			continue
		}
		s.Failed++
		if o.Err != nil && o.Err.Panic != nil {
			s.Panicked++
		}
	}
	return s
}

// P95 returns the 95th percentile item duration.
func (s Summary) P95() time.Duration {
	return s.Durations.Quantile(0.95)
}
