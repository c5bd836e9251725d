package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/frontloader/internal/command"
	"github.com/studiowebux/frontloader/internal/experiment"
	"github.com/studiowebux/frontloader/internal/keybinds"
)

const (
	// RefreshInterval is how often the display polls the experiment.
	RefreshInterval = 100 * time.Millisecond

	// StatusTimeout is how long a command's status line stays up.
	StatusTimeout = 3 * time.Second
)

type tickMsg time.Time

// doneMsg reports that every worker has returned.
type doneMsg struct{}

// Model is the bubbletea model of the live display.
type Model struct {
	src      Source
	dispatch *command.Dispatcher
	keys     *keybinds.Registry
	now      func() time.Time

	frame    Frame
	hasFrame bool // false until the first call is recorded
	phase    experiment.Phase
	progress progress.Model

	showHelp  bool
	statusMsg string
	statusAt  time.Time
	finished  bool

	width  int
	height int
}

// New creates the display over src. Keys are matched against keys and
// dispatched through dispatch.
func New(src Source, dispatch *command.Dispatcher, keys *keybinds.Registry) Model {
	if keys == nil {
		keys = keybinds.NewDefaultRegistry()
	}
	return Model{
		src:      src,
		dispatch: dispatch,
		keys:     keys,
		now:      time.Now,
		phase:    src.Phase(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(poll(), waitDone(m.src))
}

func poll() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitDone(src Source) tea.Cmd {
	return func() tea.Msg {
		<-src.Done()
		return doneMsg{}
	}
}

// Update handles ticks, key presses and resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		now := time.Time(msg)
		if m.statusMsg != "" && now.Sub(m.statusAt) >= StatusTimeout {
			m.statusMsg = ""
		}
		m.refresh(now)
		return m, poll()

	case doneMsg:
		m.refresh(m.now())
		m.finished = true
		return m, tea.Quit

	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = clamp(msg.Width-20, 10, 60)
		return m, nil
	}

	return m, nil
}

// refresh captures a new frame. The table keeps its previous content until
// the first call has been recorded.
func (m *Model) refresh(now time.Time) {
	f := Capture(m.src, now)
	m.phase = f.Phase
	if f.Snapshot.Empty() {
		return
	}
	m.frame = f
	m.hasFrame = true
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusAt = m.now()
}

// handleKey routes a key through the registry
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	context := keybinds.ContextRun
	if m.showHelp {
		context = keybinds.ContextHelp
	}

	action, ok := m.keys.Match(context, msg.String())
	if !ok {
		return nil
	}

	switch action {
	case keybinds.ActionToggleHelp:
		m.showHelp = !m.showHelp
		return nil
	case keybinds.ActionCloseHelp:
		m.showHelp = false
		return nil
	}

	cmd, isCommand := action.Command()
	if !isCommand {
		return nil
	}
	if err := m.dispatch.Dispatch(cmd); err != nil {
		m.setStatus(err.Error())
		return nil
	}

	switch cmd {
	case command.Quit:
		m.setStatus("Quitting: waiting for in-flight calls")
	case command.DebugDump:
		m.setStatus("Screen written to debug log")
	case command.Clear:
		m.setStatus("Statistics cleared")
	case command.Restart:
		m.setStatus("Run restarted")
	default:
		m.statusMsg = ""
	}
	m.phase = m.src.Phase()
	if action == keybinds.ActionQuitForce {
		return tea.Quit
	}
	return nil
}

// View renders the display.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.renderHeader() + "\n\n")

	if m.showHelp {
		sb.WriteString(m.renderHelp())
		return sb.String()
	}

	if !m.hasFrame {
		sb.WriteString(styleSubtle.Render("Waiting for the first call...") + "\n")
	} else {
		sb.WriteString(renderStyledTable(m.frame))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("run time: %s\n", formatRunTime(m.frame.Elapsed)))

		if lines := errorLines(m.frame.Snapshot); len(lines) > 0 {
			sb.WriteString("\n")
			for _, line := range lines {
				sb.WriteString(styleError.Render(line) + "\n")
			}
		}
	}

	if p := m.frame.Progress(); p >= 0 && m.hasFrame {
		sb.WriteString("\n")
		sb.WriteString(m.progress.ViewAs(p))
		sb.WriteString(fmt.Sprintf("  %d/%d iterations\n", m.frame.Iterations, m.frame.Planned))
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderFooter())
	return sb.String()
}

func (m Model) renderHeader() string {
	phase := m.phase.String()
	switch m.phase {
	case experiment.Running:
		phase = styleSuccess.Render(phase)
	case experiment.Paused:
		phase = styleWarning.Render(phase)
	case experiment.Quitting:
		phase = styleError.Render(phase)
	}

	workers := fmt.Sprintf("%d/%d workers", m.frame.Active, m.src.Workers())
	return lipgloss.JoinHorizontal(lipgloss.Top,
		styleTitle.Render("frontloader"), "  ",
		phase, "  ",
		styleSubtle.Render(workers), "  ",
		styleSubtle.Render("run "+m.src.RunID()),
	)
}

// renderFooter shows the key hints, with the latest status line above them.
func (m Model) renderFooter() string {
	var status string
	if m.statusMsg != "" {
		status = styleWarning.Render(m.statusMsg) + "\n"
	}

	hints := make([]string, 0, len(command.All)+1)
	for _, action := range []keybinds.Action{
		keybinds.ActionPause,
		keybinds.ActionResume,
		keybinds.ActionClear,
		keybinds.ActionRestart,
		keybinds.ActionDebugDump,
		keybinds.ActionQuit,
		keybinds.ActionToggleHelp,
	} {
		hints = append(hints, fmt.Sprintf("%s %s", m.keys.GetBindingString(keybinds.ContextRun, action), action))
	}
	return status + styleSubtle.Render(strings.Join(hints, " • "))
}

func (m Model) renderHelp() string {
	var content strings.Builder
	content.WriteString(styleTitle.Render("Commands") + "\n\n")

	for _, binding := range m.keys.ListBindings(keybinds.ContextRun) {
		desc := string(binding.Action)
		if cmd, ok := binding.Action.Command(); ok {
			desc = cmd.Description()
		}
		content.WriteString(fmt.Sprintf("  %-8s %s\n", binding.Key, desc))
	}
	content.WriteString("\n" + styleSubtle.Render(m.keys.GetBindingString(keybinds.ContextHelp, keybinds.ActionCloseHelp)+": close"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(1, 2).
		Render(content.String())
}

// Finished reports whether the run ended while the display was open.
func (m Model) Finished() bool {
	return m.finished
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
