package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/frontloader/internal/stats"
)

// Color palette - high contrast colors that work on both light and dark terminals
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"} // Dark green / Bright green
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"} // Dark red / Bright red
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#ffff00"} // Dark goldenrod / Yellow
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"} // Dark gray / Light gray
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"} // Dark cyan / Cyan
)

// Style definitions
var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	styleHeader = lipgloss.NewStyle().
			Bold(true)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorGray)
)

// Column widths of the numeric columns
const (
	colCount      = 10
	colAvgTime    = 10
	colMaxTime    = 10
	colErrors     = 10
	colErrPercent = 10
	colThroughput = 12
	minNameWidth  = 5 // len("TOTAL")
)

var columnHeaders = []string{"count", "avg time", "max time", "errors", "error %", "throughput"}
var columnWidths = []int{colCount, colAvgTime, colMaxTime, colErrors, colErrPercent, colThroughput}

// row is one line of the table, already formatted
type row struct {
	name  string
	cells []string
	bad   bool // has errors
}

// tableRows formats the per-call rows and the TOTAL row
func tableRows(f Frame) ([]row, row) {
	snap := f.Snapshot
	minutes := f.ElapsedMinutes()

	rows := make([]row, 0, len(snap.Names))
	for _, name := range snap.Names {
		c := snap.Call(name)
		rows = append(rows, row{
			name:  name,
			cells: formatCells(c, minutes, 3),
			bad:   c.ErrorCount > 0,
		})
	}

	total := snap.Total()
	return rows, row{
		name:  "TOTAL",
		cells: formatCells(total, minutes, 1),
		bad:   total.ErrorCount > 0,
	}
}

func formatCells(c stats.CallStat, minutes float64, percentDigits int) []string {
	return []string{
		strconv.FormatInt(c.Count, 10),
		strconv.FormatFloat(c.AverageTime(), 'f', 3, 64),
		strconv.FormatFloat(c.MaxTime.Seconds(), 'f', 3, 64),
		strconv.FormatInt(c.ErrorCount, 10),
		strconv.FormatFloat(c.ErrorPercent(), 'f', percentDigits, 64),
		strconv.FormatInt(int64(c.Throughput(minutes)), 10),
	}
}

// nameWidth returns the width of the call column
func nameWidth(names []string) int {
	width := minNameWidth
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}
	return width
}

// formatRunTime renders a duration as h:mm:ss
func formatRunTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// errorLines renders the histogram, status codes ascending and Timeout last
func errorLines(snap *stats.Snapshot) []string {
	var lines []string
	for _, kind := range snap.SortedErrorKinds() {
		lines = append(lines, fmt.Sprintf("%s: %d", kind, snap.ErrorCount(kind)))
	}
	return lines
}

// RenderTable renders a frame as plain text. It is what debug dumps and the
// headless display write.
func RenderTable(f Frame) string {
	var sb strings.Builder

	rows, total := tableRows(f)
	width := nameWidth(f.Snapshot.Names)
	rule := strings.Repeat("-", width+4+sum(columnWidths)+len(columnWidths))

	writeLine := func(name string, cells []string) {
		sb.WriteString(fmt.Sprintf("| %-*s |", width, name))
		for i, cell := range cells {
			sb.WriteString(fmt.Sprintf("%-*s|", columnWidths[i], " "+cell))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(rule + "\n")
	writeLine("call", columnHeaders)
	sb.WriteString(rule + "\n")
	for _, r := range rows {
		writeLine(r.name, r.cells)
	}
	writeLine("", make([]string, len(columnWidths)))
	writeLine(total.name, total.cells)
	sb.WriteString(rule + "\n")

	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("run time: %s\n", formatRunTime(f.Elapsed)))

	if lines := errorLines(f.Snapshot); len(lines) > 0 {
		sb.WriteString("\n")
		for _, line := range lines {
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

// renderStyledTable renders a frame for the terminal
func renderStyledTable(f Frame) string {
	var sb strings.Builder

	rows, total := tableRows(f)
	width := nameWidth(f.Snapshot.Names)

	line := func(name string, cells []string, style lipgloss.Style, bad bool) string {
		var l strings.Builder
		l.WriteString(style.Render(fmt.Sprintf("%-*s", width+2, name)))
		for i, cell := range cells {
			padded := fmt.Sprintf("%*s", columnWidths[i], cell)
			// errors and error % columns
			if bad && (i == 3 || i == 4) {
				l.WriteString(styleError.Render(padded))
				continue
			}
			l.WriteString(style.Render(padded))
		}
		return l.String()
	}

	sb.WriteString(line("call", columnHeaders, styleTitle, false) + "\n")
	for _, r := range rows {
		sb.WriteString(line(r.name, r.cells, lipgloss.NewStyle(), r.bad) + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(line(total.name, total.cells, styleHeader, total.bad) + "\n")

	return sb.String()
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
