package experiment

import (
	"context"
	"net/http"

	"github.com/studiowebux/frontloader/internal/debuglog"
	"github.com/studiowebux/frontloader/internal/transport"
)

// Params is a set of query parameters for one call.
type Params map[string]string

// Session is the request-submission handle given to a script for one iteration.
// Every verb routes through the CallTimer under the supplied call name.
//
// A verb returns the response for any completed call, including failed
// statuses, ErrTimeout when the call timed out, or the transport error for
// any other fault.
type Session struct {
	ctx    context.Context
	worker int
	timer  *CallTimer
	client transport.Doer
	debug  *debuglog.Log
}

// NewSession creates a handle bound to one worker iteration.
func NewSession(ctx context.Context, worker int, timer *CallTimer, client transport.Doer, debug *debuglog.Log) *Session {
	return &Session{ctx: ctx, worker: worker, timer: timer, client: client, debug: debug}
}

// Worker returns the 1-based id of the simulated user running this session.
func (s *Session) Worker() int {
	return s.worker
}

// Context returns the context calls are issued with.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Get issues a GET under name.
func (s *Session) Get(name, target string, params Params) (*transport.Response, error) {
	return s.Do(name, &transport.Request{Method: http.MethodGet, Target: target, Params: params})
}

// Delete issues a DELETE under name.
func (s *Session) Delete(name, target string, params Params) (*transport.Response, error) {
	return s.Do(name, &transport.Request{Method: http.MethodDelete, Target: target, Params: params})
}

// Post issues a POST with body under name.
func (s *Session) Post(name, target string, params Params, body string) (*transport.Response, error) {
	return s.Do(name, &transport.Request{Method: http.MethodPost, Target: target, Params: params, Body: body})
}

// Put issues a PUT with body under name.
func (s *Session) Put(name, target string, params Params, body string) (*transport.Response, error) {
	return s.Do(name, &transport.Request{Method: http.MethodPut, Target: target, Params: params, Body: body})
}

// Do issues an arbitrary request under name.
func (s *Session) Do(name string, req *transport.Request) (*transport.Response, error) {
	return s.timer.Time(name, func() (*transport.Response, error) {
		return s.client.Do(s.ctx, req)
	})
}

// Debug appends data to the run's debug log.
func (s *Session) Debug(data string) {
	s.debug.Script(data)
}
