// Package stats provides duration percentiles and the exit summary for
// batch runs.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// Failure describes one failed item for the summary.
type Failure struct {
	Name    string
	Message string
}

// Summary holds everything printed at the end of a batch run.
type Summary struct {
	RunID   string
	Workers int
	Elapsed time.Duration

	Total     int
	Succeeded int
	Failed    int
	TimedOut  int

	// Item duration distribution.
	P50, P95, P99, Max time.Duration

	// ExitCodes maps exit code to count.
	ExitCodes map[int]int

	Failures []Failure

	MetricsAddr string
}

// FillDurations copies percentiles from a digest into the summary.
func (s *Summary) FillDurations(d *DurationDigest) {
	if d == nil {
		return
	}
	s.P50 = d.Quantile(0.50)
	s.P95 = d.Quantile(0.95)
	s.P99 = d.Quantile(0.99)
	s.Max = d.Max()
}

// FormatExitSummary formats the summary for display at program exit.
func FormatExitSummary(s Summary) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                           procbatch Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	if s.RunID != "" {
		fmt.Fprintf(&b, "Run ID:                 %s\n", s.RunID)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Elapsed))
	fmt.Fprintf(&b, "Workers:                %d\n\n", s.Workers)

	section(&b, "Jobs")
	fmt.Fprintf(&b, "  Total:                %d\n", s.Total)
	fmt.Fprintf(&b, "  Succeeded:            %d\n", s.Succeeded)
	fmt.Fprintf(&b, "  Failed:               %d\n", s.Failed)
	if s.TimedOut > 0 {
		fmt.Fprintf(&b, "  Timed out:            %d\n", s.TimedOut)
	}
	if s.Total > 0 {
		fmt.Fprintf(&b, "  Success Rate:         %.1f%%\n", float64(s.Succeeded)*100/float64(s.Total))
	}
	b.WriteString("\n")

	if s.Max > 0 {
		section(&b, "Job Duration")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(s.P50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(s.P95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(s.P99))
		fmt.Fprintf(&b, "  Max:                  %s\n\n", FormatMs(s.Max))
	}

	if len(s.ExitCodes) > 0 {
		section(&b, "Exit Codes")
		codes := make([]int, 0, len(s.ExitCodes))
		for code := range s.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), s.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if len(s.Failures) > 0 {
		section(&b, "Failures")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  %-20s %s\n", f.Name, firstLine(f.Message))
		}
		b.WriteString("\n")
	}

	if s.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", s.MetricsAddr)
	}
	b.WriteString(heavyRule)

	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(lightRule)
	pad := (79 - len(title)) / 2
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(lightRule + "\n")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case -1:
		return "(timeout)"
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 127:
		return "(not found)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
