package web

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"plasma-ng/internal/control"
)

// Status aggregates the daemon state served at /api/status. Sources are
// polled on every snapshot.
type Status struct {
	instance      string
	startUnixNano int64
	mode          atomic.Value // string
	sources       atomic.Value // Sources
}

// Sources are the live providers queried by Snapshot. Nil fields are skipped.
type Sources struct {
	Channels func() []control.ChannelStatus
	Knobs    func() []control.KnobBinding
	Dispatch func() control.DispatchStats
}

func NewStatus() *Status {
	s := &Status{instance: uuid.NewString()}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.mode.Store("")
	s.sources.Store(Sources{})
	return s
}

// Instance is a random id that changes on every daemon start.
func (s *Status) Instance() string { return s.instance }

func (s *Status) SetMode(mode string) { s.mode.Store(mode) }

func (s *Status) SetSources(src Sources) { s.sources.Store(src) }

type KnobStatus struct {
	Name  string  `json:"name"`
	Dec   string  `json:"dec"`
	Inc   string  `json:"inc"`
	Value float64 `json:"value"`
}

type StatusSnapshot struct {
	Service   string                  `json:"service"`
	Instance  string                  `json:"instance"`
	NowUTC    string                  `json:"now_utc"`
	UptimeSec int64                   `json:"uptime_sec"`
	Mode      string                  `json:"mode"`
	Channels  []control.ChannelStatus `json:"channels"`
	Knobs     []KnobStatus            `json:"knobs,omitempty"`
	Dispatch  control.DispatchStats   `json:"dispatch"`
	Host      HostStatus              `json:"host"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	src := s.sources.Load().(Sources)

	snap := StatusSnapshot{
		Service:   "plasma-ng",
		Instance:  s.instance,
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Mode:      s.mode.Load().(string),
		Channels:  []control.ChannelStatus{},
		Host:      hostStatus(),
	}
	if src.Channels != nil {
		snap.Channels = src.Channels()
	}
	if src.Knobs != nil {
		for _, kb := range src.Knobs() {
			kb.Sync()
			snap.Knobs = append(snap.Knobs, KnobStatus{
				Name:  kb.Knob.Name(),
				Dec:   kb.Dec,
				Inc:   kb.Inc,
				Value: kb.Knob.Value(),
			})
		}
	}
	if src.Dispatch != nil {
		snap.Dispatch = src.Dispatch()
	}
	return snap
}
