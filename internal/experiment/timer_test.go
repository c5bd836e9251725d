package experiment

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/frontloader/internal/debuglog"
	"github.com/studiowebux/frontloader/internal/stats"
	"github.com/studiowebux/frontloader/internal/transport"
)

// steppedClock advances by step on every reading.
func steppedClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func respond(status int, body string) func() (*transport.Response, error) {
	return func() (*transport.Response, error) {
		return &transport.Response{Status: status, Body: []byte(body)}, nil
	}
}

func TestCallTimer_RecordsSuccess(t *testing.T) {
	table := stats.NewTable()
	timer := NewCallTimer(table, nil)
	timer.now = steppedClock(250 * time.Millisecond)

	resp, err := timer.Time("login", respond(204, ""))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)

	call := table.Snapshot().Call("login")
	assert.Equal(t, int64(1), call.Count)
	assert.Equal(t, int64(0), call.ErrorCount)
	assert.Equal(t, 250*time.Millisecond, call.TotalTime)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, call.Recent)
}

func TestCallTimer_FailureGoesToDebugLog(t *testing.T) {
	var buf bytes.Buffer
	table := stats.NewTable()
	timer := NewCallTimer(table, debuglog.New(debuglog.NewWriterSink(&buf), nil))

	resp, err := timer.Time("search", respond(404, "not here"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)

	snap := table.Snapshot()
	assert.Equal(t, int64(1), snap.Call("search").ErrorCount)
	assert.Equal(t, int64(1), snap.ErrorCount(stats.Classifier(404)))
	assert.Equal(t, "not here\n", buf.String())
}

func TestCallTimer_RedirectIsSuccess(t *testing.T) {
	table := stats.NewTable()
	timer := NewCallTimer(table, nil)

	_, err := timer.Time("home", respond(302, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(0), table.Snapshot().Call("home").ErrorCount)
}

func TestCallTimer_Timeout(t *testing.T) {
	table := stats.NewTable()
	timer := NewCallTimer(table, nil)

	resp, err := timer.Time("slow", func() (*transport.Response, error) {
		return nil, fmt.Errorf("%w: deadline", transport.ErrTimeout)
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrTimeout)

	snap := table.Snapshot()
	call := snap.Call("slow")
	assert.Equal(t, int64(1), call.Count)
	assert.Equal(t, int64(1), call.ErrorCount)
	assert.Equal(t, time.Duration(0), call.TotalTime)
	assert.Empty(t, call.Recent)
	assert.Equal(t, int64(1), snap.ErrorCount(stats.Timeout))
}

func TestCallTimer_OtherErrorsAreNotRecorded(t *testing.T) {
	table := stats.NewTable()
	timer := NewCallTimer(table, nil)
	boom := errors.New("connection refused")

	_, err := timer.Time("down", func() (*transport.Response, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, table.Snapshot().Empty())
}

func TestCallTimer_NilResponse(t *testing.T) {
	timer := NewCallTimer(stats.NewTable(), nil)

	_, err := timer.Time("odd", func() (*transport.Response, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, errNoResponse)
}
