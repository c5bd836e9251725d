package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/frontloader/internal/command"
	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/stats"
)

type fakeSource struct {
	table *stats.Table
	start time.Time
}

func (f *fakeSource) Snapshot() *stats.Snapshot { return f.table.Snapshot() }
func (f *fakeSource) Phase() experiment.Phase   { return experiment.Running }
func (f *fakeSource) StartTime() time.Time      { return f.start }
func (f *fakeSource) Iterations() int64         { return 12 }
func (f *fakeSource) PlannedIterations() int64  { return 0 }
func (f *fakeSource) Workers() int              { return 4 }
func (f *fakeSource) ActiveWorkers() int        { return 4 }
func (f *fakeSource) RunID() string             { return "run-42" }

type fakeDispatcher struct {
	mu   sync.Mutex
	cmds []command.Command
}

func (d *fakeDispatcher) Dispatch(cmd command.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, cmd)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeSource, *fakeDispatcher) {
	t.Helper()
	src := &fakeSource{table: stats.NewTable(), start: time.Now().Add(-time.Minute)}
	src.table.Record("home", 2*time.Second, stats.Success())
	src.table.Record("home", 4*time.Second, stats.Failure(503))
	src.table.RecordTimeout("search")

	dispatch := &fakeDispatcher{}
	ts := httptest.NewServer(NewServer("", src, dispatch).Handler())
	t.Cleanup(ts.Close)
	return ts, src, dispatch
}

func TestBuildPayload(t *testing.T) {
	start := time.Unix(0, 0)
	src := &fakeSource{table: stats.NewTable(), start: start}
	src.table.Record("home", 2*time.Second, stats.Success())
	src.table.Record("home", 4*time.Second, stats.Failure(503))
	src.table.RecordTimeout("search")

	p := BuildPayload(src, start.Add(2*time.Minute))

	assert.Equal(t, "run-42", p.RunID)
	assert.Equal(t, "running", p.Phase)
	assert.Equal(t, 120.0, p.Elapsed)
	require.Len(t, p.Calls, 2)
	assert.Equal(t, CallPayload{
		Name: "home", Count: 2, AverageTime: 3, MaxTime: 4, ErrorCount: 1, ErrorPercent: 50, Throughput: 1,
		RecentMin: 2, RecentMax: 4,
	}, p.Calls[0])
	assert.Zero(t, p.Total.RecentMax)
	assert.Equal(t, src.table.Snapshot().ResetAt, p.StatsSince)
	assert.Equal(t, "search", p.Calls[1].Name)
	assert.Equal(t, int64(3), p.Total.Count)
	assert.Equal(t, []ErrorPayload{{Kind: "503", Count: 1}, {Kind: "Timeout", Count: 1}}, p.Errors)
}

func TestSnapshotEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var p Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, int64(12), p.Iterations)
	assert.Len(t, p.Calls, 2)
}

func TestCommandEndpoint(t *testing.T) {
	ts, _, dispatch := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/command/PAUSE", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/command/explode", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/command/pause")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	assert.Equal(t, []command.Command{command.Pause}, dispatch.cmds)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	for _, want := range []string{
		`frontloader_calls{call="home",run_id="run-42"} 2`,
		`frontloader_call_errors{call="search",run_id="run-42"} 1`,
		`frontloader_call_max_seconds{call="home",run_id="run-42"} 4`,
		`frontloader_errors_by_kind{kind="Timeout",run_id="run-42"} 1`,
		`frontloader_iterations_completed{run_id="run-42"} 12`,
		`frontloader_workers_active{run_id="run-42"} 4`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q in:\n%s", want, text)
	}
}

// gaugeValue returns the gauge of family name whose label matches, or -1.
func gaugeValue(families []*dto.MetricFamily, name, label, value string) float64 {
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return -1
}

func TestCollector_Gather(t *testing.T) {
	src := &fakeSource{table: stats.NewTable(), start: time.Unix(1000, 0)}
	src.table.Record("home", time.Second, stats.Success())
	src.table.Record("home", 3*time.Second, stats.Success())

	collector := NewCollector(src)
	collector.now = func() time.Time { return time.Unix(1090, 0) }

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(collector))

	families, err := registry.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2.0, gaugeValue(families, "frontloader_calls", "call", "home"))
	assert.Equal(t, 2.0, gaugeValue(families, "frontloader_call_avg_seconds", "call", "home"))
	assert.Equal(t, 90.0, gaugeValue(families, "frontloader_run_seconds", "run_id", "run-42"))
	assert.Equal(t, 4.0, gaugeValue(families, "frontloader_workers_active", "run_id", "run-42"))

	src.table.Reset()
	families, err = registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, 0.0, gaugeValue(families, "frontloader_calls", "call", "home"))
}

func TestWebSocketStream(t *testing.T) {
	ts, src, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first Payload
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, int64(2), first.Calls[0].Count)

	src.table.Record("home", time.Second, stats.Success())

	require.Eventually(t, func() bool {
		var next Payload
		if err := conn.ReadJSON(&next); err != nil {
			return false
		}
		return next.Calls[0].Count == 3
	}, 2*time.Second, time.Millisecond)
}
