package stats

import "strconv"

// Classifier keys the global error histogram: an HTTP status code, or Timeout.
type Classifier int

// Timeout classifies calls that got no response within the transport deadline.
const Timeout Classifier = -1

// String returns the status code, or "Timeout" for the timeout sentinel.
func (c Classifier) String() string {
	if c == Timeout {
		return "Timeout"
	}
	return strconv.Itoa(int(c))
}

// Outcome is the classification of one completed call.
type Outcome struct {
	failed bool
	class  Classifier
}

// Success is the outcome of a call whose status fell in the success range.
func Success() Outcome {
	return Outcome{}
}

// Failure is the outcome of a call that completed with a non-success status.
func Failure(status int) Outcome {
	return Outcome{failed: true, class: Classifier(status)}
}

// Failed reports whether the outcome counts as an error.
func (o Outcome) Failed() bool {
	return o.failed
}

// Class returns the histogram key of a failed outcome.
func (o Outcome) Class() Classifier {
	return o.class
}

// IsSuccessStatus reports whether status falls in the inclusive-exclusive range [200, 400).
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 400
}
