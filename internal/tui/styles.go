// Package tui provides a live terminal dashboard for batch runs.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for styling.
// It displays:
// - Batch progress
// - Succeeded, failed and running job counts
// - Job duration percentiles and throughput
// - Recently finished jobs and failures
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Palette
// =============================================================================

// Adaptive colors pick the first value on light terminals.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"} // teal
	banner  = lipgloss.AdaptiveColor{Light: "#1E3A8A", Dark: "#1D4ED8"} // navy
	good    = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	caution = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	bad     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	fg      = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F3F4F6"}
	subtle  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	faint   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#4B5563"}
	rule    = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#334155"}
)

// =============================================================================
// Text
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	dimStyle   = lipgloss.NewStyle().Foreground(faint)
	labelStyle = mutedStyle.Width(16)

	// Bold foregrounds for counters and status lines.
	boldValue = lipgloss.NewStyle().Bold(true)
	plainVal  = boldValue.Foreground(fg)
	okValue   = boldValue.Foreground(good)
	warnValue = boldValue.Foreground(caution)
	badValue  = boldValue.Foreground(bad)
	infoValue = boldValue.Foreground(accent)
)

// =============================================================================
// Layout
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(banner).
			Bold(true).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(rule).
			Padding(0, 1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(accent).
				Bold(true).
				Underline(true)

	footerStyle = lipgloss.NewStyle().PaddingTop(1)

	barFilled = lipgloss.NewStyle().Foreground(accent)
	barEmpty  = lipgloss.NewStyle().Foreground(rule)
)

// =============================================================================
// Helpers
// =============================================================================

// GetFailureRateStyle colours a failure count by the fraction of finished
// jobs that failed: none, under 5%, or more.
func GetFailureRateStyle(failureRate float64) lipgloss.Style {
	switch {
	case failureRate <= 0:
		return okValue
	case failureRate < 0.05:
		return warnValue
	default:
		return badValue
	}
}

// GetStatusMark returns a styled check or cross for a job outcome.
func GetStatusMark(ok bool) string {
	if ok {
		return okValue.Render("✓")
	}
	return badValue.Render("✗")
}

// RenderKeyValue renders "label: value" with a fixed-width label column.
func RenderKeyValue(label string, value string) string {
	return labelStyle.Render(label+":") + plainVal.Render(value)
}

// RenderProgressBar renders a bar of width cells followed by a percentage.
// Widths below 10 are raised to 10; the filled part is clamped to the bar.
func RenderProgressBar(progress float64, width int) string {
	width = max(width, 10)
	filled := min(max(int(progress*float64(width)), 0), width)

	var b strings.Builder
	b.WriteString(barFilled.Render(strings.Repeat("█", filled)))
	b.WriteString(barEmpty.Render(strings.Repeat("░", width-filled)))
	b.WriteString(plainVal.Render(fmt.Sprintf(" %3.0f%%", progress*100)))
	return b.String()
}
