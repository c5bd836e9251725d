package tui

import (
	"time"

	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/stats"
)

// Source is the read side of a running experiment.
type Source interface {
	Snapshot() *stats.Snapshot
	Phase() experiment.Phase
	StartTime() time.Time
	Iterations() int64
	PlannedIterations() int64
	Workers() int
	ActiveWorkers() int
	RunID() string
	Done() <-chan struct{}
}

// Frame is everything one refresh of the display shows.
type Frame struct {
	Snapshot   *stats.Snapshot
	Phase      experiment.Phase
	Elapsed    time.Duration
	Iterations int64
	Planned    int64
	Workers    int
	Active     int
	RunID      string
}

// Capture reads a frame from src. Elapsed is measured from the run start to now.
func Capture(src Source, now time.Time) Frame {
	f := Frame{
		Snapshot:   src.Snapshot(),
		Phase:      src.Phase(),
		Iterations: src.Iterations(),
		Planned:    src.PlannedIterations(),
		Workers:    src.Workers(),
		Active:     src.ActiveWorkers(),
		RunID:      src.RunID(),
	}
	if start := src.StartTime(); !start.IsZero() {
		f.Elapsed = now.Sub(start)
	}
	return f
}

// ElapsedMinutes returns the run time in minutes for throughput.
func (f Frame) ElapsedMinutes() float64 {
	return f.Elapsed.Minutes()
}

// Progress returns the completed share of a bounded run in [0, 1], or -1 when unbounded.
func (f Frame) Progress() float64 {
	if f.Planned <= 0 {
		return -1
	}
	p := float64(f.Iterations) / float64(f.Planned)
	if p > 1 {
		p = 1
	}
	return p
}

// Screen renders the current state of src on demand. It backs the debug-dump command.
type Screen struct {
	src Source
	now func() time.Time
}

// NewScreen creates a screen over src.
func NewScreen(src Source) *Screen {
	return &Screen{src: src, now: time.Now}
}

// Dump returns the plain-text display.
func (s *Screen) Dump() string {
	return RenderTable(Capture(s.src, s.now()))
}
