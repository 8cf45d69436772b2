// Package ctl implements the non-interactive livechart commands. It streams
// published series views to the terminal as text or JSON lines and queries a
// running livechartd over HTTP.
package ctl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/large-farva/livechart/internal/stream"
)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

// colorEnabled reports whether stdout is a terminal. When output is piped
// or redirected, ANSI escape codes are suppressed.
func colorEnabled() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

// terminalWidth returns the width of stdout, or fallback when unknown.
func terminalWidth(fallback int) int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// statusColor returns the ANSI color code for a connection status.
func statusColor(s stream.Status) string {
	if !colorEnabled() {
		return ""
	}
	switch s {
	case stream.StatusConnected:
		return green
	case stream.StatusConnecting:
		return yellow
	case stream.StatusError:
		return red
	case stream.StatusDisconnected:
		return dim
	default:
		return white
	}
}

// colorize wraps text with an ANSI color sequence.
// Returns the text unchanged when color output is disabled.
func colorize(color, text string) string {
	if !colorEnabled() || color == "" {
		return text
	}
	return color + text + reset
}

// header returns a bold section header, or plain text when color is off.
func header(title string) string {
	if colorEnabled() {
		return bold + title + reset
	}
	return title
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// truncate cuts s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// formatDuration renders a time.Duration as a compact human string like
// "2h 14m 8s" or "45s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatValue keeps series values short enough for one summary line.
func formatValue(v float64) string {
	switch {
	case v >= 1e6 || v <= -1e6:
		return fmt.Sprintf("%.3g", v)
	case v >= 100 || v <= -100:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
