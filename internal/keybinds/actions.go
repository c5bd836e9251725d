package keybinds

import "github.com/studiowebux/frontloader/internal/command"

// Action represents a user action that can be triggered by a keybinding
type Action string

// Context represents the context in which keybindings are active
type Context string

const (
	ContextGlobal Context = "global" // Available everywhere
	ContextRun    Context = "run"    // Live statistics view
	ContextHelp   Context = "help"   // Help overlay
)

const (
	// Run control actions, one per command
	ActionClear     Action = "clear"      // Zero all statistics
	ActionDebugDump Action = "debug_dump" // Write the screen to the debug log
	ActionPause     Action = "pause"      // Suspend workers
	ActionResume    Action = "resume"     // Continue a paused run
	ActionQuit      Action = "quit"       // Stop the run
	ActionRestart   Action = "restart"    // Clear and restart the run clock

	// Display actions
	ActionQuitForce  Action = "quit_force"  // Quit (ctrl+c)
	ActionToggleHelp Action = "toggle_help" // Show or hide the help overlay
	ActionCloseHelp  Action = "close_help"  // Hide the help overlay
)

// actionCommands maps run control actions to the command they dispatch
var actionCommands = map[Action]command.Command{
	ActionClear:     command.Clear,
	ActionDebugDump: command.DebugDump,
	ActionPause:     command.Pause,
	ActionResume:    command.Resume,
	ActionQuit:      command.Quit,
	ActionQuitForce: command.Quit,
	ActionRestart:   command.Restart,
}

// Command returns the command an action dispatches, if any
func (a Action) Command() (command.Command, bool) {
	cmd, ok := actionCommands[a]
	return cmd, ok
}

// KnownActions lists every action a config file may bind
var KnownActions = []Action{
	ActionClear,
	ActionDebugDump,
	ActionPause,
	ActionResume,
	ActionQuit,
	ActionRestart,
	ActionQuitForce,
	ActionToggleHelp,
	ActionCloseHelp,
}

// IsKnown reports whether a is a defined action
func (a Action) IsKnown() bool {
	for _, known := range KnownActions {
		if a == known {
			return true
		}
	}
	return false
}
