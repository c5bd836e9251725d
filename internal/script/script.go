// Package script turns a file on disk into the procedure each simulated user
// runs once per iteration.
//
// Two formats are supported. Scenario files (.yaml, .yml, .json) list the
// calls declaratively. Lua files (.lua) define a global function run(session)
// that drives the session handle directly.
package script

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/studiowebux/frontloader/internal/experiment"
)

// Program is a loaded script.
type Program interface {
	// Script returns the per-iteration procedure. It is safe for concurrent use.
	Script() experiment.Script
	// Close releases interpreter resources.
	Close() error
}

// Load reads path and picks the loader from its extension. users is the
// number of workers that will run the script concurrently.
func Load(path string, users int) (Program, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		scenario, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		return scenario, nil
	case ".lua":
		lua, err := NewLuaScript(path, users)
		if err != nil {
			return nil, err
		}
		return lua, nil
	default:
		return nil, fmt.Errorf("unsupported script type %q (want .yaml, .yml, .json or .lua)", ext)
	}
}
