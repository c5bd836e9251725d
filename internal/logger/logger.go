// Package logger provides the process-wide structured logger.
//
// The logger writes to stderr by default. When the live display owns the
// terminal, Configure redirects output to a file or discards it so log lines
// never tear the alternate screen.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the global logger instance.
var Logger *log.Logger

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetReportTimestamp(true)
	Logger.SetLevel(log.InfoLevel)
}

// Options controls where and how much the logger writes.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // append to this file instead of stderr
	Discard bool   // drop everything (used while the TUI is active and no File is set)
}

// Configure rebuilds the global logger from opts.
// It returns a close function for the log file, which is a no-op when no file was opened.
func Configure(opts Options) (func() error, error) {
	var output io.Writer = os.Stderr
	closer := func() error { return nil }

	switch {
	case opts.File != "":
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return closer, err
		}
		output = file
		closer = file.Close
	case opts.Discard:
		output = io.Discard
	}

	Logger = log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
		Level:           ParseLevel(opts.Level),
	})

	return closer, nil
}

// ParseLevel converts a level name to a log level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func Component(name string) *log.Logger {
	return Logger.With("component", name)
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}
