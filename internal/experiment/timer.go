package experiment

import (
	"errors"
	"time"

	"github.com/studiowebux/frontloader/internal/debuglog"
	"github.com/studiowebux/frontloader/internal/stats"
	"github.com/studiowebux/frontloader/internal/transport"
)

// ErrTimeout is returned by CallTimer.Time (and the Session verbs) when the
// call timed out. The timeout has already been recorded; no response exists.
var ErrTimeout = errors.New("call timed out")

var errNoResponse = errors.New("call returned neither a response nor an error")

// CallTimer is the single path through which statistics enter a Table.
// It holds references only; the table and the debug log belong to the Controller.
type CallTimer struct {
	table *stats.Table
	debug *debuglog.Log
	now   func() time.Time
}

// NewCallTimer creates a timer feeding table. debug may be nil.
func NewCallTimer(table *stats.Table, debug *debuglog.Log) *CallTimer {
	return &CallTimer{table: table, debug: debug, now: time.Now}
}

// Time runs op under name, measures it and records the outcome.
//
// A response with a status in [200, 400) is a success. Any other status is a
// classified failure and its body goes to the debug log. An op error wrapping
// transport.ErrTimeout is recorded as a timeout and reported as ErrTimeout.
// Every other op error is returned untouched and nothing is recorded.
func (c *CallTimer) Time(name string, op func() (*transport.Response, error)) (*transport.Response, error) {
	start := c.now()
	resp, err := op()
	elapsed := c.now().Sub(start)

	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			c.table.RecordTimeout(name)
			return nil, ErrTimeout
		}
		return nil, err
	}
	if resp == nil {
		return nil, errNoResponse
	}

	if stats.IsSuccessStatus(resp.Status) {
		c.table.Record(name, elapsed, stats.Success())
		return resp, nil
	}

	c.table.Record(name, elapsed, stats.Failure(resp.Status))
	c.debug.Response(name, resp.Body)
	return resp, nil
}
