package stats

import (
	"sort"
	"time"
)

// CallStat is the point-in-time statistics of one call name.
type CallStat struct {
	Count      int64           `json:"count"`
	TotalTime  time.Duration   `json:"total_time"`
	MaxTime    time.Duration   `json:"max_time"`
	ErrorCount int64           `json:"error_count"`
	Recent     []time.Duration `json:"recent"`
}

// AverageTime returns the mean call time in seconds, or 0 when nothing was recorded.
func (c CallStat) AverageTime() float64 {
	if c.Count == 0 {
		return 0
	}
	return c.TotalTime.Seconds() / float64(c.Count)
}

// ErrorPercent returns the share of failed calls as a percentage, or 0 when nothing was recorded.
func (c CallStat) ErrorPercent() float64 {
	if c.Count == 0 {
		return 0
	}
	return float64(c.ErrorCount) / float64(c.Count) * 100
}

// Throughput returns calls per minute over elapsedMinutes, or 0 for a non-positive window.
func (c CallStat) Throughput(elapsedMinutes float64) float64 {
	if elapsedMinutes <= 0 {
		return 0
	}
	return float64(c.Count) / elapsedMinutes
}

// RecentRange returns the smallest and largest latency in the recent window,
// or zeros when it is empty.
func (c CallStat) RecentRange() (lo, hi time.Duration) {
	for i, d := range c.Recent {
		if i == 0 || d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// Snapshot is an internally consistent copy of a Table.
// It is independent of later mutation of the table.
type Snapshot struct {
	Calls      map[string]CallStat  `json:"calls"`
	Names      []string             `json:"names"`
	Errors     map[Classifier]int64 `json:"errors"`
	ErrorKinds []Classifier         `json:"error_kinds"`
	TakenAt    time.Time            `json:"taken_at"`
	ResetAt    time.Time            `json:"reset_at"`
}

// Empty reports whether no call has been observed yet.
func (s *Snapshot) Empty() bool {
	return len(s.Names) == 0
}

// Call returns the statistics of name; unknown names yield a zero CallStat.
func (s *Snapshot) Call(name string) CallStat {
	return s.Calls[name]
}

// AverageTime returns the mean call time of name in seconds.
func (s *Snapshot) AverageTime(name string) float64 {
	return s.Call(name).AverageTime()
}

// ErrorPercent returns the error percentage of name.
func (s *Snapshot) ErrorPercent(name string) float64 {
	return s.Call(name).ErrorPercent()
}

// Throughput returns the calls per minute of name over elapsedMinutes.
func (s *Snapshot) Throughput(name string, elapsedMinutes float64) float64 {
	return s.Call(name).Throughput(elapsedMinutes)
}

// Total folds every call into one aggregate row. MaxTime is the largest
// single-call time across all names; Recent is left empty.
func (s *Snapshot) Total() CallStat {
	var total CallStat
	for _, c := range s.Calls {
		total.Count += c.Count
		total.TotalTime += c.TotalTime
		total.ErrorCount += c.ErrorCount
		if c.MaxTime > total.MaxTime {
			total.MaxTime = c.MaxTime
		}
	}
	return total
}

// ErrorCount returns the histogram count for class.
func (s *Snapshot) ErrorCount(class Classifier) int64 {
	return s.Errors[class]
}

// SortedErrorKinds returns histogram keys with status codes ascending and Timeout last.
func (s *Snapshot) SortedErrorKinds() []Classifier {
	kinds := make([]Classifier, len(s.ErrorKinds))
	copy(kinds, s.ErrorKinds)
	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i] == Timeout {
			return false
		}
		if kinds[j] == Timeout {
			return true
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}
