package experiment

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/frontloader/internal/debuglog"
	"github.com/studiowebux/frontloader/internal/logger"
	"github.com/studiowebux/frontloader/internal/stats"
	"github.com/studiowebux/frontloader/internal/transport"
)

// ErrAlreadyStarted is returned by Start on a controller that left Idle.
var ErrAlreadyStarted = errors.New("experiment already started")

// Script is the user procedure run once per worker iteration.
type Script func(ctx context.Context, s *Session) error

// Config describes one run.
type Config struct {
	RunID      string // generated when empty
	Workers    int
	Iterations Iterations
	Script     Script
	Client     transport.Doer
	Debug      *debuglog.Log // may be nil
}

// Validate checks the run configuration.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	if c.Script == nil {
		return fmt.Errorf("a script is required")
	}
	if c.Client == nil {
		return fmt.Errorf("a transport client is required")
	}
	return nil
}

// Controller owns the phase machine, the worker pool and the statistics table.
type Controller struct {
	cfg   Config
	table *stats.Table
	timer *CallTimer
	now   func() time.Time

	mu      sync.Mutex
	phase   Phase
	changed chan struct{} // closed and replaced on every phase transition
	started time.Time

	done     chan struct{}
	doneOnce sync.Once
	err      error
	finished atomic.Int64 // completed iterations across all workers
	active   atomic.Int32 // workers still inside their loop
}

// New creates an idle controller.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	table := stats.NewTable()
	return &Controller{
		cfg:     cfg,
		table:   table,
		timer:   NewCallTimer(table, cfg.Debug),
		now:     time.Now,
		phase:   Idle,
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start moves Idle to Running and spawns the workers. Calls are issued with
// ctx; cancelling it quits the run.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != Idle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if c.started.IsZero() {
		c.started = c.now()
	}
	c.setPhaseLocked(Running)
	c.mu.Unlock()

	log := logger.Component("experiment")
	log.Info("Run started", "run", c.cfg.RunID, "workers", c.cfg.Workers, "iterations", c.cfg.Iterations)

	var group errgroup.Group
	for id := 1; id <= c.cfg.Workers; id++ {
		group.Go(func() error {
			return c.worker(ctx, id)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			c.Quit()
		case <-c.done:
		}
	}()

	go func() {
		err := group.Wait()
		log.Info("Run finished", "run", c.cfg.RunID, "iterations", c.finished.Load())
		c.finish(err)
	}()

	return nil
}

// finish records the outcome, enters Quitting and releases Wait.
func (c *Controller) finish(err error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.setPhaseLocked(Quitting)
		c.mu.Unlock()
		close(c.done)
	})
}

// Wait blocks until every worker has returned. It reports the first worker fault.
func (c *Controller) Wait() error {
	<-c.done
	return c.err
}

// Run starts the experiment and waits for it to end.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Wait()
}

// Done is closed once every worker has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Pause suspends workers at their next iteration boundary.
func (c *Controller) Pause() {
	c.transition(Paused, Running)
}

// Resume lets paused workers continue.
func (c *Controller) Resume() {
	c.transition(Running, Paused)
}

// Quit stops workers at their next iteration boundary. In-flight calls complete.
// Quitting an idle controller ends it without running anything.
func (c *Controller) Quit() {
	c.mu.Lock()
	wasIdle := c.phase == Idle
	c.setPhaseLocked(Quitting)
	c.mu.Unlock()

	if wasIdle {
		c.finish(nil)
	}
}

// ClearData zeroes the statistics. The phase is unchanged.
func (c *Controller) ClearData() {
	c.table.Reset()
}

// Restart clears the statistics, restarts the run clock and leaves a Running
// or Paused run Running. Idle is excluded: no workers exist yet, so an idle
// controller only clears and stays Idle until Start. Quitting only clears.
func (c *Controller) Restart() {
	c.ClearData()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != Running && c.phase != Paused {
		return
	}
	c.started = c.now()
	if c.phase == Paused {
		c.setPhaseLocked(Running)
	}
}

// transition moves to next if the current phase is one of from.
func (c *Controller) transition(next Phase, from ...Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range from {
		if c.phase == p {
			c.setPhaseLocked(next)
			return
		}
	}
}

// setPhaseLocked switches phase and wakes every waiter. Caller holds c.mu.
func (c *Controller) setPhaseLocked(p Phase) {
	if c.phase == p || c.phase == Quitting {
		return
	}
	logger.Component("experiment").Debug("Phase changed", "from", c.phase, "to", p)
	c.phase = p
	close(c.changed)
	c.changed = make(chan struct{})
}

// observe returns the phase with the channel closed on its next change.
func (c *Controller) observe() (Phase, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase, c.changed
}

// worker runs the script until its budget is spent or the run quits.
// A script fault ends this worker only.
func (c *Controller) worker(ctx context.Context, id int) error {
	c.active.Add(1)
	defer c.active.Add(-1)

	budget := c.cfg.Iterations
	left := budget.Count()

	for budget.IsUnbounded() || left > 0 {
		phase, changed := c.observe()
		switch phase {
		case Quitting:
			return nil
		case Paused:
			<-changed
			continue
		}

		if err := c.iterate(ctx, id); err != nil {
			if ctx.Err() != nil {
				// The run was cancelled under an in-flight call.
				return nil
			}
			logger.Component("experiment").Error("Worker stopped", "worker", id, "err", err)
			return fmt.Errorf("worker %d: %w", id, err)
		}

		c.finished.Add(1)
		left--
	}

	return nil
}

// iterate runs the script once with a fresh session.
func (c *Controller) iterate(ctx context.Context, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panic: %v\n%s", r, debug.Stack())
		}
	}()

	session := NewSession(ctx, id, c.timer, c.cfg.Client, c.cfg.Debug)
	err = c.cfg.Script(ctx, session)
	if errors.Is(err, ErrTimeout) {
		// Already recorded by the timer.
		return nil
	}
	return err
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// StartTime returns when the run clock started; zero before Start.
func (c *Controller) StartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// ElapsedMinutes returns the run clock in minutes, or 0 before Start.
func (c *Controller) ElapsedMinutes() float64 {
	start := c.StartTime()
	if start.IsZero() {
		return 0
	}
	return c.now().Sub(start).Minutes()
}

// Snapshot returns a consistent copy of the statistics.
func (c *Controller) Snapshot() *stats.Snapshot {
	return c.table.Snapshot()
}

// Iterations returns how many script iterations completed across all workers.
func (c *Controller) Iterations() int64 {
	return c.finished.Load()
}

// PlannedIterations returns workers times budget, or 0 for unbounded runs.
func (c *Controller) PlannedIterations() int64 {
	return int64(c.cfg.Workers) * int64(c.cfg.Iterations.Count())
}

// Workers returns the configured number of simulated users.
func (c *Controller) Workers() int {
	return c.cfg.Workers
}

// ActiveWorkers returns how many workers are still looping.
func (c *Controller) ActiveWorkers() int {
	return int(c.active.Load())
}

// RunID identifies this run in logs and the debug store.
func (c *Controller) RunID() string {
	return c.cfg.RunID
}

// DumpScreen writes a rendered display to the debug log.
func (c *Controller) DumpScreen(screen string) {
	c.cfg.Debug.Screen(screen)
}

// WriteDebug appends free-form data to the debug log.
func (c *Controller) WriteDebug(data string) {
	c.cfg.Debug.Script(data)
}
