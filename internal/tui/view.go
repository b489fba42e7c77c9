package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-procbatch/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderJobStats(),
	}

	if m.showFailures && len(m.failures) > 0 {
		sections = append(sections, m.renderFailures())
	} else if len(m.recent) > 0 {
		sections = append(sections, m.renderRecent())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	runID := m.runID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	if runID == "" {
		runID = "-"
	}

	header := fmt.Sprintf(
		" procbatch │ run %s │ Jobs: %d/%d │ Workers: %d │ Elapsed: %s ",
		runID,
		m.Finished(),
		m.total,
		m.workers,
		stats.FormatDuration(m.elapsed),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(m.Progress(), barWidth)

	var status string
	switch {
	case m.done && m.failed == 0:
		status = okValue.Render("✓ Batch finished")
	case m.done:
		status = warnValue.Render(fmt.Sprintf("Batch finished with %d failed", m.failed))
	default:
		status = infoValue.Render(fmt.Sprintf("Running... %d active, %d/%d done", m.Running(), m.Finished(), m.total))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Batch Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Job Statistics
// =============================================================================

func (m Model) renderJobStats() string {
	failed := GetFailureRateStyle(m.FailureRate()).Render(fmt.Sprintf("%d", m.failed))

	rows := []string{
		sectionHeaderStyle.Render("Jobs"),
		RenderKeyValue("Succeeded", fmt.Sprintf("%d", m.succeeded)),
		labelStyle.Render("Failed:") + failed,
		RenderKeyValue("Running", fmt.Sprintf("%d", m.Running())),
	}

	if rates := m.rate.Rates(); rates.Total > 0 {
		rows = append(rows, RenderKeyValue("Throughput",
			fmt.Sprintf("%.2f/s (10s) %.2f/s (60s) %.2f/s (overall)", rates.Last10s, rates.Last60s, rates.Overall)))
	}

	if m.durations.Count() > 0 {
		rows = append(rows,
			RenderKeyValue("Duration P50", stats.FormatMs(m.durations.Quantile(0.50))),
			RenderKeyValue("Duration P95", stats.FormatMs(m.durations.Quantile(0.95))),
			RenderKeyValue("Duration Max", stats.FormatMs(m.durations.Max())),
		)
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Recent Jobs / Failures
// =============================================================================

func (m Model) renderRecent() string {
	rows := []string{sectionHeaderStyle.Render("Recently Finished")}
	for i := len(m.recent) - 1; i >= 0; i-- {
		r := m.recent[i]
		rows = append(rows, fmt.Sprintf("%s %s %s",
			GetStatusMark(r.ok),
			truncate(r.name, m.width-20),
			mutedStyle.Render(stats.FormatMs(r.elapsed)),
		))
	}
	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderFailures() string {
	rows := []string{sectionHeaderStyle.Render(fmt.Sprintf("Failures (%d)", len(m.failures)))}
	shown := m.failures
	if limit := m.height - 14; limit > 0 && len(shown) > limit {
		shown = shown[len(shown)-limit:]
	}
	for _, name := range shown {
		rows = append(rows, GetStatusMark(false)+" "+truncate(name, m.width-8))
	}
	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func truncate(s string, n int) string {
	if n < 10 {
		n = 10
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"f: toggle failures",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.metricsAddr != "" {
		right = dimStyle.Render("Metrics: http://" + m.metricsAddr + "/metrics")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}
