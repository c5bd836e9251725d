package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studiowebux/frontloader/internal/config"
)

var (
	version = "0.1.0"
)

var (
	flagConfigFile string
	flagEnvFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "frontloader",
	Short: "Frontloader - HTTP load generator with a live statistics table",
	Long: `Frontloader simulates concurrent users replaying a script against a web service
and shows per-call latency and error statistics while the run progresses.

Scripts are YAML/JSON scenarios or Lua files defining run(session).

Examples:
  frontloader run checkout.yaml --domain https://shop.example -u 20
  frontloader run flow.lua --domain http://localhost:8080 -n 100
  frontloader run --config frontloader.yaml --env-file .env
  frontloader run plan.yaml --headless --dashboard-addr :9090
  frontloader keybinds export -o keybinds.json`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "frontloader %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "Load FRONTLOADER_* settings from a .env file")

	flags := runCmd.Flags()
	flags.String(config.FlagName(config.KeyDomain), "", "Base URL every call is resolved against")
	flags.IntP(config.FlagName(config.KeyUsers), "u", 1, "Number of simulated users")
	flags.IntP(config.FlagName(config.KeyLoops), "n", -1, "Iterations per user (-1 runs until quit)")
	flags.String(config.FlagName(config.KeyBasicAuthUser), "", "HTTP basic auth user")
	flags.String(config.FlagName(config.KeyBasicAuthPass), "", "HTTP basic auth password")
	flags.StringToString(config.FlagName(config.KeyDefaultParams), nil, "Query parameters added to every call (key=value)")
	flags.StringToString(config.FlagName(config.KeyDefaultHeaders), nil, "Headers added to every call (key=value)")
	flags.Duration(config.FlagName(config.KeyConnectTimeout), 0, "Connect timeout (default 10s)")
	flags.Duration(config.FlagName(config.KeyReadTimeout), 0, "Read timeout (default 500s)")
	flags.Bool(config.FlagName(config.KeyInsecure), true, "Skip TLS certificate verification")
	flags.String(config.FlagName(config.KeyDebugFile), "", "Append debug output to this file")
	flags.String(config.FlagName(config.KeyDebugDB), "", "Store debug output in this SQLite database")
	flags.String(config.FlagName(config.KeyDashboardAddr), "", "Serve the dashboard on this address (e.g. :9090)")
	flags.String(config.FlagName(config.KeyLogLevel), "info", "Log level (debug/info/warn/error)")
	flags.String(config.FlagName(config.KeyLogFile), "", "Write logs to this file")
	flags.Bool(config.FlagName(config.KeyHeadless), false, "Print periodic summaries instead of the live table")
	flags.String(config.FlagName(config.KeyKeybindsFile), "", "Keybinds config file")
	flags.Duration(config.FlagName(config.KeySummaryInterval), 0, "Headless summary interval (default 5s)")

	keybindsExportCmd.Flags().StringVarP(&flagKeybindsOutput, "output", "o", "", "Write to this file instead of stdout")

	keybindsCmd.AddCommand(keybindsExportCmd)
	keybindsCmd.AddCommand(keybindsCheckCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(keybindsCmd)
	rootCmd.AddCommand(versionCmd)
}
