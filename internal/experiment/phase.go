package experiment

import "strconv"

// Phase is the lifecycle state of a run.
type Phase int

const (
	Idle Phase = iota
	Running
	Paused
	Quitting
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Quitting:
		return "quitting"
	default:
		return "unknown"
	}
}

// Iterations is the per-worker loop budget: a fixed count or unbounded.
type Iterations struct {
	n         int
	unbounded bool
}

// Unbounded runs each worker until quit.
func Unbounded() Iterations {
	return Iterations{unbounded: true}
}

// Bounded runs each worker n times.
func Bounded(n int) Iterations {
	return Iterations{n: n}
}

// IterationsFromInt converts the command-line convention (negative means unbounded).
func IterationsFromInt(n int) Iterations {
	if n < 0 {
		return Unbounded()
	}
	return Bounded(n)
}

// IsUnbounded reports whether the budget never runs out.
func (i Iterations) IsUnbounded() bool {
	return i.unbounded
}

// Count returns the bounded count, or 0 when unbounded.
func (i Iterations) Count() int {
	if i.unbounded {
		return 0
	}
	return i.n
}

// String renders the budget for display.
func (i Iterations) String() string {
	if i.unbounded {
		return "unbounded"
	}
	return strconv.Itoa(i.n)
}
