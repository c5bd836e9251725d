// Package command maps control tokens to experiment operations.
//
// Commands arrive from key presses in the live display, from lines on stdin in
// headless mode, and from the dashboard. All three sources go through a
// Dispatcher so they behave the same way.
package command

import "strings"

// Command is one control signal.
type Command string

const (
	Clear     Command = "clear"
	DebugDump Command = "debug-dump"
	Pause     Command = "pause"
	Quit      Command = "quit"
	Restart   Command = "restart"
	Resume    Command = "resume"
)

// All lists the vocabulary in display order.
var All = []Command{Clear, DebugDump, Pause, Resume, Quit, Restart}

// Description returns a short help text for the command.
func (c Command) Description() string {
	switch c {
	case Clear:
		return "zero all statistics"
	case DebugDump:
		return "write the current screen to the debug log"
	case Pause:
		return "suspend workers at their next iteration"
	case Quit:
		return "stop the run"
	case Restart:
		return "clear statistics and restart the run clock"
	case Resume:
		return "continue a paused run"
	default:
		return ""
	}
}

// Parse converts a token to a command. Matching ignores case and surrounding
// whitespace; unknown tokens report false.
func Parse(token string) (Command, bool) {
	cmd := Command(strings.ToLower(strings.TrimSpace(token)))
	for _, known := range All {
		if cmd == known {
			return cmd, true
		}
	}
	return "", false
}
