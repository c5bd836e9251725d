package dashboard

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
}

// CallPayload is one row of the statistics table.
type CallPayload struct {
	Name         string  `json:"name"`
	Count        int64   `json:"count"`
	AverageTime  float64 `json:"avg_time"`
	MaxTime      float64 `json:"max_time"`
	ErrorCount   int64   `json:"errors"`
	ErrorPercent float64 `json:"error_percent"`
	Throughput   float64 `json:"throughput"`
	RecentMin    float64 `json:"recent_min"` // over the last stats.RecentCapacity calls
	RecentMax    float64 `json:"recent_max"`
}

// ErrorPayload is one entry of the error histogram.
type ErrorPayload struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// Payload is what /api/snapshot returns and /ws streams.
type Payload struct {
	RunID      string         `json:"run_id"`
	Phase      string         `json:"phase"`
	Elapsed    float64        `json:"elapsed_seconds"`
	Iterations int64          `json:"iterations"`
	Planned    int64          `json:"planned_iterations"`
	Workers    int            `json:"workers"`
	Active     int            `json:"active_workers"`
	Calls      []CallPayload  `json:"calls"`
	Total      CallPayload    `json:"total"`
	Errors     []ErrorPayload `json:"errors"`
	StatsSince time.Time      `json:"stats_since"` // creation or last clear of the statistics
	TakenAt    time.Time      `json:"taken_at"`
}

// BuildPayload reads src into a payload. Calls keep first-seen order.
func BuildPayload(src Source, now time.Time) Payload {
	snap := src.Snapshot()

	var elapsed time.Duration
	if start := src.StartTime(); !start.IsZero() {
		elapsed = now.Sub(start)
	}
	minutes := elapsed.Minutes()

	p := Payload{
		RunID:      src.RunID(),
		Phase:      src.Phase().String(),
		Elapsed:    elapsed.Seconds(),
		Iterations: src.Iterations(),
		Planned:    src.PlannedIterations(),
		Workers:    src.Workers(),
		Active:     src.ActiveWorkers(),
		Calls:      make([]CallPayload, 0, len(snap.Names)),
		Errors:     make([]ErrorPayload, 0, len(snap.ErrorKinds)),
		Total:      callPayload("TOTAL", snap.Total(), minutes),
		StatsSince: snap.ResetAt,
		TakenAt:    now,
	}

	for _, name := range snap.Names {
		p.Calls = append(p.Calls, callPayload(name, snap.Call(name), minutes))
	}
	for _, kind := range snap.SortedErrorKinds() {
		p.Errors = append(p.Errors, ErrorPayload{Kind: kind.String(), Count: snap.ErrorCount(kind)})
	}

	return p
}

func callPayload(name string, c stats.CallStat, minutes float64) CallPayload {
	lo, hi := c.RecentRange()
	return CallPayload{
		Name:         name,
		Count:        c.Count,
		AverageTime:  c.AverageTime(),
		MaxTime:      c.MaxTime.Seconds(),
		ErrorCount:   c.ErrorCount,
		ErrorPercent: c.ErrorPercent(),
		Throughput:   c.Throughput(minutes),
		RecentMin:    lo.Seconds(),
		RecentMax:    hi.Seconds(),
	}
}
