package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmespath/go-jmespath"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/logger"
	"github.com/studiowebux/frontloader/internal/transport"
)

const (
	luaEntryPoint   = "run"
	luaSessionType  = "frontloader_session"
	luaModule       = "frontloader"
	luaTimeoutValue = "timeout"
)

// LuaScript runs a compiled Lua file. The chunk must define a global function
// run(session); it is called once per iteration.
//
// Session methods take the call name first:
//
//	local res, err = session:get("home", "/", { q = "x" })
//	session:post("login", "/login", nil, body)
//	session:debug("note")
//	local token = frontloader.extract(res.body, "session.token")
//
// A completed call returns a table with status, body, headers and duration.
// A timed out call returns nil, "timeout". Any other fault raises a Lua error
// and ends the worker.
type LuaScript struct {
	path  string
	proto *lua.FunctionProto
	idle  chan *lua.LState
}

// CompileLua reads the passed lua file from disk and compiles it.
func CompileLua(path string) (*lua.FunctionProto, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	chunk, err := parse.Parse(bufio.NewReader(file), path)
	if err != nil {
		return nil, err
	}

	return lua.Compile(chunk, path)
}

// NewLuaScript compiles path once and checks that it defines run. The state
// pool keeps one idle state per simulated user.
func NewLuaScript(path string, users int) (*LuaScript, error) {
	if users < 1 {
		users = 1
	}

	proto, err := CompileLua(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile lua script: %w", err)
	}

	l := &LuaScript{
		path:  path,
		proto: proto,
		idle:  make(chan *lua.LState, users),
	}

	// Load one state up front so a missing entry point fails at startup.
	state, err := l.newState()
	if err != nil {
		return nil, err
	}
	l.put(state)

	return l, nil
}

// newState creates a state with the session type registered and the chunk loaded.
func (l *LuaScript) newState() (*lua.LState, error) {
	L := lua.NewState()

	registerSessionType(L)
	L.SetGlobal(luaModule, L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"sleep":   luaSleep,
		"extract": luaExtract,
	}))

	L.Push(L.NewFunctionFromProto(l.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load lua script %s: %w", l.path, err)
	}

	if L.GetGlobal(luaEntryPoint).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("lua script %s does not define a %s(session) function", l.path, luaEntryPoint)
	}

	logger.Component("script").Debug("Created Lua state", "script", l.path)
	return L, nil
}

// get returns an idle state or creates a new one.
func (l *LuaScript) get() (*lua.LState, error) {
	select {
	case L := <-l.idle:
		return L, nil
	default:
		return l.newState()
	}
}

// put resets L and keeps it for reuse, closing it when the pool is full.
func (l *LuaScript) put(L *lua.LState) {
	L.SetTop(0)
	L.RemoveContext()

	select {
	case l.idle <- L:
	default:
		L.Close()
	}
}

// Script returns the procedure calling run(session) on a pooled state.
func (l *LuaScript) Script() experiment.Script {
	return func(ctx context.Context, session *experiment.Session) error {
		L, err := l.get()
		if err != nil {
			return err
		}

		L.SetContext(ctx)
		ud := L.NewUserData()
		ud.Value = session
		L.SetMetatable(ud, L.GetTypeMetatable(luaSessionType))

		err = L.CallByParam(lua.P{
			Fn:      L.GetGlobal(luaEntryPoint),
			NRet:    0,
			Protect: true,
		}, ud)
		if err != nil {
			// A state that raised may hold partial globals; drop it.
			L.Close()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("lua %s: %w", luaEntryPoint, err)
		}

		l.put(L)
		return nil
	}
}

// Close closes every idle state.
func (l *LuaScript) Close() error {
	for {
		select {
		case L := <-l.idle:
			L.Close()
		default:
			return nil
		}
	}
}

func registerSessionType(L *lua.LState) {
	mt := L.NewTypeMetatable(luaSessionType)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":    sessionGet,
		"delete": sessionDelete,
		"post":   sessionPost,
		"put":    sessionPut,
		"debug":  sessionDebug,
		"worker": sessionWorker,
	}))
}

// checkSession retrieves the session bound to the method receiver.
func checkSession(L *lua.LState) *experiment.Session {
	ud := L.CheckUserData(1)
	if s, ok := ud.Value.(*experiment.Session); ok {
		return s
	}

	L.ArgError(1, "session expected")
	return nil
}

// checkParams converts an optional table argument to call parameters.
func checkParams(L *lua.LState, n int) experiment.Params {
	tbl := L.OptTable(n, nil)
	if tbl == nil {
		return nil
	}

	params := make(experiment.Params)
	tbl.ForEach(func(k, v lua.LValue) {
		params[lua.LVAsString(k)] = lua.LVAsString(v)
	})
	return params
}

// pushResult converts a call result to Lua return values.
func pushResult(L *lua.LState, resp *transport.Response, err error) int {
	if err != nil {
		if errors.Is(err, experiment.ErrTimeout) {
			L.Push(lua.LNil)
			L.Push(lua.LString(luaTimeoutValue))
			return 2
		}
		L.RaiseError("%s", err.Error())
		return 0
	}

	headers := L.NewTable()
	for name, value := range resp.Headers {
		headers.RawSetString(name, lua.LString(value))
	}

	res := L.NewTable()
	res.RawSetString("status", lua.LNumber(resp.Status))
	res.RawSetString("body", lua.LString(resp.Body))
	res.RawSetString("headers", headers)
	res.RawSetString("duration", lua.LNumber(resp.Duration.Seconds()))

	L.Push(res)
	return 1
}

func sessionGet(L *lua.LState) int {
	s := checkSession(L)
	resp, err := s.Get(L.CheckString(2), L.CheckString(3), checkParams(L, 4))
	return pushResult(L, resp, err)
}

func sessionDelete(L *lua.LState) int {
	s := checkSession(L)
	resp, err := s.Delete(L.CheckString(2), L.CheckString(3), checkParams(L, 4))
	return pushResult(L, resp, err)
}

func sessionPost(L *lua.LState) int {
	s := checkSession(L)
	resp, err := s.Post(L.CheckString(2), L.CheckString(3), checkParams(L, 4), L.OptString(5, ""))
	return pushResult(L, resp, err)
}

func sessionPut(L *lua.LState) int {
	s := checkSession(L)
	resp, err := s.Put(L.CheckString(2), L.CheckString(3), checkParams(L, 4), L.OptString(5, ""))
	return pushResult(L, resp, err)
}

func sessionDebug(L *lua.LState) int {
	checkSession(L).Debug(L.CheckString(2))
	return 0
}

func sessionWorker(L *lua.LState) int {
	L.Push(lua.LNumber(checkSession(L).Worker()))
	return 1
}

// luaExtract applies a JMESPath expression to a JSON string. It returns the
// match, or nil and an error message.
func luaExtract(L *lua.LState) int {
	body, expr := L.CheckString(1), L.CheckString(2)

	jp, err := jmespath.Compile(expr)
	if err == nil {
		var value string
		if value, err = extract([]byte(body), jp); err == nil {
			L.Push(lua.LString(value))
			return 1
		}
	}

	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

// luaSleep pauses for the given number of seconds, returning early on cancellation.
func luaSleep(L *lua.LState) int {
	d := time.Duration(float64(L.CheckNumber(1)) * float64(time.Second))

	ctx := L.Context()
	if ctx == nil {
		time.Sleep(d)
		return 0
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	return 0
}
