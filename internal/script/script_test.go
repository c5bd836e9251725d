package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/studiowebux/frontloader/internal/debuglog"
	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/stats"
	"github.com/studiowebux/frontloader/internal/transport"
)

// recordingDoer answers by target and remembers every request.
type recordingDoer struct {
	mu       sync.Mutex
	requests []transport.Request
	statuses map[string]int
	bodies   map[string]string
	errs     map[string]error
}

func (d *recordingDoer) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, *req)

	if err, ok := d.errs[req.Target]; ok {
		return nil, err
	}
	status := 200
	if s, ok := d.statuses[req.Target]; ok {
		status = s
	}
	body := "body of " + req.Target
	if b, ok := d.bodies[req.Target]; ok {
		body = b
	}
	return &transport.Response{
		Status:  status,
		Body:    []byte(body),
		Headers: map[string]string{"Content-Type": "text/plain"},
	}, nil
}

type harness struct {
	doer  *recordingDoer
	table *stats.Table
	debug bytes.Buffer
	log   *debuglog.Log
}

func newHarness() *harness {
	h := &harness{
		doer:  &recordingDoer{statuses: map[string]int{}, bodies: map[string]string{}, errs: map[string]error{}},
		table: stats.NewTable(),
	}
	h.log = debuglog.New(debuglog.NewWriterSink(&h.debug), nil)
	return h
}

func (h *harness) session(worker int) *experiment.Session {
	timer := experiment.NewCallTimer(h.table, h.log)
	return experiment.NewSession(context.Background(), worker, timer, h.doer, h.log)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

var timeoutErr = fmt.Errorf("%w: read deadline", transport.ErrTimeout)

func TestParseScenario_Defaults(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: browse
steps:
  - target: /
  - name: search
    method: post
    target: /search
    body: '{"q":"shoes"}'
    think: 10ms
  - debug: checkpoint
`))
	require.NoError(t, err)

	require.Len(t, s.Steps, 3)
	assert.Equal(t, "GET", s.Steps[0].Method)
	assert.Equal(t, "GET /", s.Steps[0].Name)
	assert.Equal(t, "POST", s.Steps[1].Method)
	assert.Equal(t, "search", s.Steps[1].Name)
	assert.Equal(t, "10ms", s.Steps[1].Think.String())
	assert.Equal(t, "checkpoint", s.Steps[2].Debug)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no steps", `name: empty`},
		{"missing target", "steps:\n  - method: GET\n"},
		{"bad method", "steps:\n  - target: /\n    method: FETCH\n"},
		{"bad yaml", "steps: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestScenario_RunsStepsInOrder(t *testing.T) {
	h := newHarness()
	s, err := ParseScenario([]byte(`{
  "steps": [
    {"name": "home", "target": "/users/${worker}"},
    {"debug": "worker ${worker} logged in"},
    {"name": "save", "method": "PUT", "target": "/save", "params": {"v": "1"}, "body": "w=${worker}"}
  ]
}`))
	require.NoError(t, err)

	require.NoError(t, s.Script()(context.Background(), h.session(7)))

	require.Len(t, h.doer.requests, 2)
	assert.Equal(t, "/users/7", h.doer.requests[0].Target)
	assert.Equal(t, "PUT", h.doer.requests[1].Method)
	assert.Equal(t, "w=7", h.doer.requests[1].Body)
	assert.Equal(t, map[string]string{"v": "1"}, h.doer.requests[1].Params)
	assert.Equal(t, "worker 7 logged in\n", h.debug.String())

	snap := h.table.Snapshot()
	assert.Equal(t, []string{"home", "save"}, snap.Names)
}

func TestScenario_AbortOnFailure(t *testing.T) {
	h := newHarness()
	h.doer.statuses["/login"] = 500
	s, err := ParseScenario([]byte(`
abort_on_failure: true
steps:
  - {name: login, target: /login}
  - {name: cart, target: /cart}
`))
	require.NoError(t, err)

	require.NoError(t, s.Script()(context.Background(), h.session(1)))
	assert.Len(t, h.doer.requests, 1)
	assert.Equal(t, int64(1), h.table.Snapshot().ErrorCount(500))
}

func TestScenario_TimeoutContinuesByDefault(t *testing.T) {
	h := newHarness()
	h.doer.errs["/slow"] = timeoutErr
	s, err := ParseScenario([]byte("steps:\n  - {name: slow, target: /slow}\n  - {name: fast, target: /fast}\n"))
	require.NoError(t, err)

	require.NoError(t, s.Script()(context.Background(), h.session(1)))
	assert.Len(t, h.doer.requests, 2)
	assert.Equal(t, int64(1), h.table.Snapshot().ErrorCount(stats.Timeout))
}

func TestScenario_TransportFaultEndsIteration(t *testing.T) {
	h := newHarness()
	refused := errors.New("connection refused")
	h.doer.errs["/down"] = refused
	s, err := ParseScenario([]byte("steps:\n  - {target: /down}\n  - {target: /next}\n"))
	require.NoError(t, err)

	err = s.Script()(context.Background(), h.session(1))
	assert.ErrorIs(t, err, refused)
	assert.Len(t, h.doer.requests, 1)
}

func TestScenario_CapturesFeedLaterSteps(t *testing.T) {
	h := newHarness()
	h.doer.bodies["/login"] = `{"session": {"token": "abc123", "ttl": 300}, "items": [4, 8]}`
	s, err := ParseScenario([]byte(`
steps:
  - name: login
    method: POST
    target: /login
    capture:
      token: session.token
      ttl: session.ttl
      first: items[0]
  - name: cart
    target: /cart/${first}
    params: {ttl: "${ttl}"}
    headers: {Authorization: "Bearer ${token}"}
`))
	require.NoError(t, err)

	require.NoError(t, s.Script()(context.Background(), h.session(1)))

	require.Len(t, h.doer.requests, 2)
	cart := h.doer.requests[1]
	assert.Equal(t, "/cart/4", cart.Target)
	assert.Equal(t, "300", cart.Params["ttl"])
	assert.Equal(t, "Bearer abc123", cart.Headers["Authorization"])
}

func TestScenario_FailedCaptureIsLogged(t *testing.T) {
	h := newHarness()
	s, err := ParseScenario([]byte(`
abort_on_failure: true
steps:
  - {name: login, target: /login, capture: {token: token}}
  - {name: cart, target: /cart}
`))
	require.NoError(t, err)

	require.NoError(t, s.Script()(context.Background(), h.session(1)))
	assert.Len(t, h.doer.requests, 1)
	assert.Contains(t, h.debug.String(), "login: capture token: invalid JSON")
}

func TestParseScenario_InvalidCapture(t *testing.T) {
	_, err := ParseScenario([]byte("steps:\n  - {target: /, capture: {token: 'a[?'}}\n"))
	assert.Error(t, err)

	_, err = ParseScenario([]byte("steps:\n  - {target: /, capture: {worker: id}}\n"))
	assert.Error(t, err)
}

const luaScript = `
function run(session)
  local res, err = session:get("home", "/", { page = 2 })
  if err ~= nil then
    error("unexpected " .. err)
  end
  session:debug("status " .. res.status .. " " .. res.headers["Content-Type"])

  local res2, err2 = session:post("slow", "/slow", nil, "payload")
  if err2 == "timeout" then
    session:debug("timed out as worker " .. session:worker())
  end

  session:delete("remove", "/item", nil)
  session:put("update", "/item", { id = "9" }, "v2")
end
`

func TestLuaScript_SessionMethods(t *testing.T) {
	h := newHarness()
	h.doer.errs["/slow"] = timeoutErr

	prog, err := Load(writeFile(t, "flow.lua", luaScript), 8)
	require.NoError(t, err)
	defer prog.Close()

	require.NoError(t, prog.Script()(context.Background(), h.session(3)))

	require.Len(t, h.doer.requests, 4)
	assert.Equal(t, map[string]string{"page": "2"}, map[string]string(h.doer.requests[0].Params))
	assert.Equal(t, "POST", h.doer.requests[1].Method)
	assert.Equal(t, "payload", h.doer.requests[1].Body)
	assert.Equal(t, "DELETE", h.doer.requests[2].Method)
	assert.Equal(t, "v2", h.doer.requests[3].Body)

	assert.Equal(t, "status 200 text/plain\ntimed out as worker 3\n", h.debug.String())

	snap := h.table.Snapshot()
	assert.Equal(t, []string{"home", "slow", "remove", "update"}, snap.Names)
	assert.Equal(t, int64(1), snap.ErrorCount(stats.Timeout))
}

func TestLuaScript_TransportFaultRaises(t *testing.T) {
	h := newHarness()
	h.doer.errs["/"] = errors.New("connection refused")

	prog, err := Load(writeFile(t, "flow.lua", `function run(s) s:get("home", "/") end`), 8)
	require.NoError(t, err)
	defer prog.Close()

	err = prog.Script()(context.Background(), h.session(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLuaScript_Extract(t *testing.T) {
	h := newHarness()
	h.doer.bodies["/login"] = `{"token": "t-9"}`

	prog, err := Load(writeFile(t, "flow.lua", `
function run(s)
  local res = s:post("login", "/login", nil, "")
  local token = frontloader.extract(res.body, "token")
  s:get("cart", "/cart", { token = token })

  local missing, err = frontloader.extract("not json", "token")
  if missing == nil then
    s:debug(err)
  end
end
`), 8)
	require.NoError(t, err)
	defer prog.Close()

	require.NoError(t, prog.Script()(context.Background(), h.session(1)))

	require.Len(t, h.doer.requests, 2)
	assert.Equal(t, "t-9", h.doer.requests[1].Params["token"])
	assert.Contains(t, h.debug.String(), "invalid JSON")
}

func TestLuaScript_ConcurrentUsers(t *testing.T) {
	h := newHarness()
	prog, err := Load(writeFile(t, "flow.lua", `
counter = 0
function run(s)
  counter = counter + 1
  s:get("tick", "/tick")
end
`), 8)
	require.NoError(t, err)
	defer prog.Close()

	script := prog.Script()
	var wg sync.WaitGroup
	for w := 1; w <= 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				assert.NoError(t, script(context.Background(), h.session(w)))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(160), h.table.Snapshot().Call("tick").Count)
}

func TestLuaScript_PoolKeepsAStatePerUser(t *testing.T) {
	const users = 100

	l, err := NewLuaScript(writeFile(t, "flow.lua", `function run(s) end`), users)
	require.NoError(t, err)
	defer l.Close()

	states := make([]*lua.LState, users)
	for i := range states {
		states[i], err = l.get()
		require.NoError(t, err)
	}
	for _, L := range states {
		l.put(L)
	}

	assert.Len(t, l.idle, users)
}

func TestNewLuaScript_Errors(t *testing.T) {
	_, err := NewLuaScript(writeFile(t, "syntax.lua", `function run(`), 1)
	assert.Error(t, err)

	_, err = NewLuaScript(writeFile(t, "norun.lua", `x = 1`), 1)
	assert.ErrorContains(t, err, "does not define a run(session) function")

	_, err = NewLuaScript(filepath.Join(t.TempDir(), "missing.lua"), 1)
	assert.Error(t, err)
}

func TestLoad_Extensions(t *testing.T) {
	prog, err := Load(writeFile(t, "plan.yml", "steps:\n  - target: /\n"), 8)
	require.NoError(t, err)
	assert.IsType(t, &Scenario{}, prog)
	assert.NoError(t, prog.Close())

	_, err = Load(writeFile(t, "plan.txt", "GET /"), 8)
	assert.ErrorContains(t, err, "unsupported script type")
}
