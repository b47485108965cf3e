package timing

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/asecurityteam/rolling"
)

// Stats keeps a rolling window of timing errors (absolute values) so the
// status API can show how well a loop keeps its schedule.
type Stats struct {
	size    int
	window  *rolling.PointPolicy
	samples atomic.Int64
	last    atomic.Int64
}

type StatsSnapshot struct {
	Samples int64   `json:"samples"`
	LastMs  float64 `json:"last_ms"`
	MeanMs  float64 `json:"mean_abs_ms"`
	MaxMs   float64 `json:"max_abs_ms"`
}

func NewStats(size int) *Stats {
	if size <= 0 {
		size = 256
	}
	return &Stats{size: size, window: rolling.NewPointPolicy(rolling.NewWindow(size))}
}

func (s *Stats) Observe(d time.Duration) {
	if s == nil {
		return
	}
	s.last.Store(int64(d))
	s.window.Append(math.Abs(float64(d) / float64(time.Millisecond)))
	s.samples.Add(1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	n := s.samples.Load()
	if n == 0 {
		return StatsSnapshot{}
	}
	// The window is zero-filled until it wraps; average over what was written.
	filled := min(n, int64(s.size))
	return StatsSnapshot{
		Samples: n,
		LastMs:  float64(s.last.Load()) / float64(time.Millisecond),
		MeanMs:  s.window.Reduce(rolling.Sum) / float64(filled),
		MaxMs:   s.window.Reduce(rolling.Max),
	}
}
