package command

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/studiowebux/frontloader/internal/logger"
)

// Target is the controller surface a Dispatcher drives.
type Target interface {
	Pause()
	Resume()
	Quit()
	ClearData()
	Restart()
	DumpScreen(screen string)
}

// Screen renders what the operator currently sees.
type Screen interface {
	Dump() string
}

// Dispatcher routes commands to a Target.
type Dispatcher struct {
	target Target
	screen Screen
}

// NewDispatcher creates a dispatcher. screen may be nil, in which case
// debug-dump is ignored.
func NewDispatcher(target Target, screen Screen) *Dispatcher {
	return &Dispatcher{target: target, screen: screen}
}

// Dispatch runs cmd against the target.
func (d *Dispatcher) Dispatch(cmd Command) error {
	log := logger.Component("command")

	switch cmd {
	case Clear:
		d.target.ClearData()
	case DebugDump:
		if d.screen == nil {
			log.Warn("Nothing to dump: no screen attached")
			return nil
		}
		d.target.DumpScreen(d.screen.Dump())
	case Pause:
		d.target.Pause()
	case Resume:
		d.target.Resume()
	case Quit:
		d.target.Quit()
	case Restart:
		d.target.Restart()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	log.Debug("Command dispatched", "command", cmd)
	return nil
}

// DispatchToken parses token and dispatches it. Unknown tokens are ignored and
// report false.
func (d *Dispatcher) DispatchToken(token string) (Command, bool) {
	cmd, ok := Parse(token)
	if !ok {
		return "", false
	}
	if err := d.Dispatch(cmd); err != nil {
		return "", false
	}
	return cmd, true
}

// Listen reads one command per line from r until EOF, a read error, ctx
// cancellation or a quit command. Blank and unknown lines are skipped.
func (d *Dispatcher) Listen(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("failed to read commands: %w", err)
					}
				default:
				}
				return nil
			}
			cmd, known := d.DispatchToken(line)
			if !known {
				if line != "" {
					logger.Component("command").Debug("Ignoring unknown command", "input", line)
				}
				continue
			}
			if cmd == Quit {
				return nil
			}
		}
	}
}
