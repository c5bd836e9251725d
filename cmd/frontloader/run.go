package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/studiowebux/frontloader/internal/command"
	"github.com/studiowebux/frontloader/internal/config"
	"github.com/studiowebux/frontloader/internal/dashboard"
	"github.com/studiowebux/frontloader/internal/debuglog"
	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/keybinds"
	"github.com/studiowebux/frontloader/internal/logger"
	"github.com/studiowebux/frontloader/internal/script"
	"github.com/studiowebux/frontloader/internal/transport"
	"github.com/studiowebux/frontloader/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run a load script",
	Long: `Run a load script with the configured number of simulated users.

The live table accepts single-key commands: c clear, d debug dump, p pause,
r resume, s restart, q quit. Without a terminal (or with --headless) the
table is printed periodically and the same commands are read from stdin,
one per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		if len(args) > 0 {
			v.Set(config.KeyScript, args[0])
		}

		cfg, err := config.Load(v, flagConfigFile, flagEnvFile)
		if err != nil {
			return err
		}
		return runExperiment(cmd.Context(), cfg)
	},
}

// runExperiment wires every component of one run and blocks until it ends.
func runExperiment(ctx context.Context, cfg *config.RunConfig) error {
	// Calls only see the hard stop. The display and the dashboard also end
	// when this function returns.
	callCtx, cancelCalls := context.WithCancel(ctx)
	defer cancelCalls()
	ctx, stopDisplay := context.WithCancel(ctx)
	defer stopDisplay()

	interactive := !cfg.Headless && isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stdin.Fd())

	closeLog, err := logger.Configure(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Discard: interactive,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closeLog()

	runID := uuid.NewString()
	log := logger.Component("run").With("run", runID)

	debug, err := openDebugLog(cfg, runID)
	if err != nil {
		return err
	}
	defer debug.Close()

	program, err := script.Load(cfg.Script, cfg.Users)
	if err != nil {
		return fmt.Errorf("failed to load script: %w", err)
	}
	defer program.Close()

	client, err := transport.New(cfg.TransportOptions())
	if err != nil {
		return err
	}
	defer client.Close()

	ctrl, err := experiment.New(experiment.Config{
		RunID:      runID,
		Workers:    cfg.Users,
		Iterations: cfg.Iterations(),
		Script:     program.Script(),
		Client:     client,
		Debug:      debug,
	})
	if err != nil {
		return err
	}

	dispatch := command.NewDispatcher(ctrl, tui.NewScreen(ctrl))

	if cfg.DashboardAddr != "" {
		srv := dashboard.NewServer(cfg.DashboardAddr, ctrl, dispatch)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Error("Dashboard stopped", "err", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	watchDone := make(chan struct{})
	defer close(watchDone)
	go watchSignals(sigs, watchDone, ctrl.Quit, func() {
		cancelCalls()
		stopDisplay()
	})

	log.Info("Starting run", "script", cfg.Script, "domain", cfg.Domain, "users", cfg.Users, "loops", cfg.Iterations())
	if err := ctrl.Start(callCtx); err != nil {
		return err
	}

	if interactive {
		err = runInteractive(ctx, ctrl, dispatch, cfg.KeybindsFile)
	} else {
		err = runHeadless(ctx, ctrl, dispatch, cfg)
	}

	// The display may end before the run does (quit key, stdin closed, signal).
	ctrl.Quit()
	runErr := ctrl.Wait()

	if err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run finished with a worker fault: %w", runErr)
	}
	return nil
}

// openDebugLog opens the configured debug sink. With none configured the
// returned log drops every write.
func openDebugLog(cfg *config.RunConfig, runID string) (*debuglog.Log, error) {
	onFail := func(err error) {
		logger.Component("debuglog").Warn("Debug write failed", "err", err)
	}

	switch {
	case cfg.DebugDB != "":
		sink, err := debuglog.NewSQLiteSink(cfg.DebugDB, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug database: %w", err)
		}
		return debuglog.New(sink, onFail), nil
	case cfg.DebugFile != "":
		sink, err := debuglog.NewFileSink(cfg.DebugFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug file: %w", err)
		}
		return debuglog.New(sink, onFail), nil
	default:
		return debuglog.New(nil, nil), nil
	}
}

// runInteractive drives the live table until the run ends or the user quits.
func runInteractive(ctx context.Context, ctrl *experiment.Controller, dispatch *command.Dispatcher, keybindsFile string) error {
	keys, err := keybinds.LoadOrDefault(keybindsFile)
	if err != nil {
		return err
	}
	if result := keybinds.NewValidator().ValidateRegistry(keys); result.HasErrors() {
		return fmt.Errorf("invalid keybinds:\n%s", result.String())
	} else if result.HasWarnings() {
		logger.Component("keybinds").Warn("Keybind warnings", "detail", result.String())
	}

	p := tea.NewProgram(tui.New(ctrl, dispatch, keys), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("display failed: %w", err)
	}
	return nil
}

// runHeadless prints periodic summaries and reads commands from stdin.
func runHeadless(ctx context.Context, ctrl *experiment.Controller, dispatch *command.Dispatcher, cfg *config.RunConfig) error {
	go func() {
		if err := dispatch.Listen(ctx, os.Stdin); err != nil {
			logger.Component("command").Warn("Command input stopped", "err", err)
		}
	}()

	return tui.RunHeadless(ctx, ctrl, os.Stdout, cfg.SummaryInterval)
}
