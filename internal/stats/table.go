package stats

import (
	"sync"
	"time"
)

// RecentCapacity bounds the per-call recent latency window.
const RecentCapacity = 25

// record holds the mutable statistics of one call name.
type record struct {
	count      int64
	totalTime  time.Duration
	maxTime    time.Duration
	errorCount int64
	recent     []time.Duration // most recent first
}

// Table aggregates per-call statistics and the global error histogram.
//
// A single mutex guards every record and the histogram, so a Snapshot never
// observes a record half way through an update and a Reset never interleaves
// with a Record.
type Table struct {
	mu      sync.Mutex
	records map[string]*record
	order   []string // call names in first-seen order
	errors  map[Classifier]int64
	errKeys []Classifier // histogram keys in first-seen order
	resetAt time.Time
	now     func() time.Time
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		records: make(map[string]*record),
		errors:  make(map[Classifier]int64),
		resetAt: time.Now(),
		now:     time.Now,
	}
}

// getOrCreate returns the record for name, creating a zeroed one on first use.
// The caller must hold t.mu.
func (t *Table) getOrCreate(name string) *record {
	r, ok := t.records[name]
	if !ok {
		r = &record{recent: make([]time.Duration, 0, RecentCapacity)}
		t.records[name] = r
		t.order = append(t.order, name)
	}
	return r
}

// bumpError increments the histogram entry for c. The caller must hold t.mu.
func (t *Table) bumpError(c Classifier) {
	if _, ok := t.errors[c]; !ok {
		t.errKeys = append(t.errKeys, c)
	}
	t.errors[c]++
}

// Record adds one observed call.
func (t *Table) Record(name string, elapsed time.Duration, outcome Outcome) {
	if elapsed < 0 {
		elapsed = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.getOrCreate(name)
	r.count++
	r.totalTime += elapsed
	if elapsed > r.maxTime {
		r.maxTime = elapsed
	}
	if outcome.Failed() {
		r.errorCount++
		t.bumpError(outcome.Class())
	}

	// Push to the front, dropping the oldest entry once the window is full.
	if len(r.recent) < RecentCapacity {
		r.recent = append(r.recent, 0)
	}
	copy(r.recent[1:], r.recent[:len(r.recent)-1])
	r.recent[0] = elapsed
}

// RecordTimeout adds one call that timed out. It counts toward volume and
// errors but contributes nothing to the total time.
func (t *Table) RecordTimeout(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.getOrCreate(name)
	r.count++
	r.errorCount++
	t.bumpError(Timeout)
}

// Reset zeroes every record and histogram entry. Known call names and error
// classes are kept so the display layout stays stable across clears.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range t.records {
		r.count = 0
		r.totalTime = 0
		r.maxTime = 0
		r.errorCount = 0
		r.recent = r.recent[:0]
	}
	for c := range t.errors {
		t.errors[c] = 0
	}
	t.resetAt = t.now()
}

// Names returns the known call names in first-seen order.
func (t *Table) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, len(t.order))
	copy(names, t.order)
	return names
}

// Snapshot returns a deep copy of the table taken under the lock.
func (t *Table) Snapshot() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := &Snapshot{
		Calls:      make(map[string]CallStat, len(t.records)),
		Names:      make([]string, len(t.order)),
		Errors:     make(map[Classifier]int64, len(t.errors)),
		ErrorKinds: make([]Classifier, len(t.errKeys)),
		TakenAt:    t.now(),
		ResetAt:    t.resetAt,
	}
	copy(snap.Names, t.order)
	copy(snap.ErrorKinds, t.errKeys)

	for name, r := range t.records {
		recent := make([]time.Duration, len(r.recent))
		copy(recent, r.recent)
		snap.Calls[name] = CallStat{
			Count:      r.count,
			TotalTime:  r.totalTime,
			MaxTime:    r.maxTime,
			ErrorCount: r.errorCount,
			Recent:     recent,
		}
	}
	for c, n := range t.errors {
		snap.Errors[c] = n
	}

	return snap
}
