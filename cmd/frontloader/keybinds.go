package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiowebux/frontloader/internal/keybinds"
)

var flagKeybindsOutput string

var keybindsCmd = &cobra.Command{
	Use:   "keybinds",
	Short: "Inspect and customise the live table key bindings",
}

var keybindsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the default key bindings as a config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := keybinds.ExportConfig(keybinds.NewDefaultRegistry())
		if flagKeybindsOutput != "" {
			if err := keybinds.SaveConfig(cfg, flagKeybindsOutput); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", flagKeybindsOutput)
			return nil
		}

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode keybinds: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var keybindsCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a keybinds config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := keybinds.LoadConfig(args[0])
		if err != nil {
			return err
		}

		conflicts := keybinds.FindConflicts(cfg)
		out := cmd.OutOrStdout()
		if len(conflicts) == 0 {
			fmt.Fprintln(out, "No conflicts found")
			return nil
		}
		for _, c := range conflicts {
			fmt.Fprintln(out, c)
		}

		if keybinds.NewValidator().ValidateConfig(cfg).HasErrors() {
			return fmt.Errorf("%s is invalid", args[0])
		}
		return nil
	},
}
