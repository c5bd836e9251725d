/*
Package keybinds provides customizable keyboard binding management for the
live display.

# Overview

Keys map to actions within a context. Run control actions each dispatch one
command (see Action.Command); display actions only change what is shown.

# Key Concepts

Context Hierarchy:
  - Global: Bindings available everywhere
  - Run: The live statistics view
  - Help: The help overlay

Keys shadow from specific → global. If a key is bound in a specific
context, it overrides the global binding.

# Default Bindings

	c       clear
	d       debug_dump
	p       pause
	r       resume
	q       quit
	s       restart
	?       toggle_help
	ctrl+c  quit_force (global)

# Configuration File Format

Each section maps an action to a comma separated list of keys. An action
listed in the file loses its default keys in that context:

	{
	  "version": "1.0",
	  "run": {
	    "pause": "p,space",
	    "restart": "R"
	  }
	}

# Validation

The validator checks for:
  - Invalid key formats and unknown actions (errors)
  - Shadowing of global bindings (warnings)
  - Reserved key rebindings (warnings)
  - Run commands left without a key (warnings)

# Example Usage

	registry, err := keybinds.LoadOrDefault(path)
	if err != nil {
		return err
	}

	if action, ok := registry.Match(keybinds.ContextRun, msg.String()); ok {
		if cmd, isCommand := action.Command(); isCommand {
			dispatcher.Dispatch(cmd)
		}
	}

# Thread Safety

The Registry is safe for concurrent reads. Writes (Register, Unbind,
ApplyConfig) should be done during initialization.
*/
package keybinds
