package keybinds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Config represents the user's keybinding configuration
// Each section maps an action to a comma separated list of keys
type Config struct {
	Version string            `json:"version"`
	Global  map[string]string `json:"global,omitempty"`
	Run     map[string]string `json:"run,omitempty"`
	Help    map[string]string `json:"help,omitempty"`
}

// LoadConfig loads keybinding configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid keybinds file format: %w", err)
	}

	return &config, nil
}

// SaveConfig saves keybinding configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// sections pairs each config section with its context
func (c *Config) sections() map[Context]map[string]string {
	return map[Context]map[string]string{
		ContextGlobal: c.Global,
		ContextRun:    c.Run,
		ContextHelp:   c.Help,
	}
}

// ApplyConfig applies user configuration to a registry
// An action listed in the config loses its previous keys in that context
func ApplyConfig(registry *Registry, config *Config) error {
	for context, bindings := range config.sections() {
		for actionStr, keyList := range bindings {
			action := Action(actionStr)
			if !action.IsKnown() {
				return fmt.Errorf("unknown action '%s' in context '%s'", actionStr, context)
			}

			keys := splitKeys(keyList)
			for _, key := range keys {
				if err := ValidateKey(key); err != nil {
					return fmt.Errorf("action '%s': %w", actionStr, err)
				}
			}

			registry.Unbind(context, action)
			registry.RegisterMultiple(context, keys, action)
		}
	}

	return nil
}

func splitKeys(list string) []string {
	var keys []string
	for _, key := range strings.Split(list, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// LoadOrDefault loads user config over the defaults
// An empty path or a missing file yields the defaults
func LoadOrDefault(configPath string) (*Registry, error) {
	registry := NewDefaultRegistry()
	if configPath == "" {
		return registry, nil
	}

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return registry, nil
		}
		return nil, fmt.Errorf("failed to stat keybinds file: %w", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keybinds file: %w", err)
	}

	if err := ApplyConfig(registry, config); err != nil {
		return nil, fmt.Errorf("failed to apply keybinds config: %w", err)
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid keybinds: %w", err)
	}

	return registry, nil
}

// ExportConfig exports the bindings of a registry in config file form
// Useful for users to see what can be customized
func ExportConfig(registry *Registry) *Config {
	config := &Config{
		Version: "1.0",
		Global:  make(map[string]string),
		Run:     make(map[string]string),
		Help:    make(map[string]string),
	}

	for context, section := range config.sections() {
		for _, action := range KnownActions {
			keys := keysFor(registry.bindings[context], action)
			if len(keys) == 0 {
				continue
			}
			section[string(action)] = strings.Join(sortedCopy(keys), ",")
		}
	}

	return config
}
