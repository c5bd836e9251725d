// Package debuglog is the append-only diagnostic stream of a run.
//
// Workers write the bodies of failed responses, scripts write free-form
// notes, and the debug-dump command writes the rendered screen. A Log owns
// its own mutex, independent of the statistics lock, so a slow sink only
// delays the writer, never call timing.
package debuglog

import (
	"sync"
)

// Kind tags an entry with where it came from.
type Kind string

const (
	KindResponse Kind = "response" // body of a failed response
	KindScript   Kind = "script"   // written by a load script
	KindScreen   Kind = "screen"   // rendered display dump
)

// Entry is one item of the diagnostic stream.
type Entry struct {
	Kind Kind
	Call string // call name, empty for screen dumps
	Data string
}

// Sink stores entries. Implementations need not be safe for concurrent use;
// Log serialises every call.
type Sink interface {
	Write(entry Entry) error
	Close() error
}

// Log is a mutex-guarded Sink. A nil *Log, or one without a sink, drops writes.
type Log struct {
	mu     sync.Mutex
	sink   Sink
	onFail func(error)
}

// New wraps sink. onFail, when set, receives sink errors; writes never fail the caller.
func New(sink Sink, onFail func(error)) *Log {
	return &Log{sink: sink, onFail: onFail}
}

// Enabled reports whether writes go anywhere.
func (l *Log) Enabled() bool {
	return l != nil && l.sink != nil
}

// Write appends one entry.
func (l *Log) Write(entry Entry) {
	if !l.Enabled() {
		return
	}

	l.mu.Lock()
	err := l.sink.Write(entry)
	l.mu.Unlock()

	if err != nil && l.onFail != nil {
		l.onFail(err)
	}
}

// Response records the body of a failed call.
func (l *Log) Response(call string, body []byte) {
	l.Write(Entry{Kind: KindResponse, Call: call, Data: string(body)})
}

// Script records a note written by a load script.
func (l *Log) Script(data string) {
	l.Write(Entry{Kind: KindScript, Data: data})
}

// Screen records a display dump.
func (l *Log) Screen(screen string) {
	l.Write(Entry{Kind: KindScreen, Data: screen})
}

// Close closes the sink.
func (l *Log) Close() error {
	if !l.Enabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink.Close()
}
