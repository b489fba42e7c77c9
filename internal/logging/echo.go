package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCommand = lipgloss.Color("#3B82F6") // Blue
	colorError   = lipgloss.Color("#EF4444") // Red
	colorLabel   = lipgloss.Color("#9CA3AF") // Medium gray
)

// Echo prints human-facing command traces: the "+ cmd" line before a
// command runs and the captured output of a failed command.
//
// Colors are chosen by the renderer from the writer, so output to a pipe
// or a buffer is plain text. A nil *Echo prints nothing.
type Echo struct {
	w  io.Writer
	mu sync.Mutex

	commandStyle lipgloss.Style
	errorStyle   lipgloss.Style
	labelStyle   lipgloss.Style
}

// NewEcho creates an Echo writing to w.
func NewEcho(w io.Writer) *Echo {
	r := lipgloss.NewRenderer(w)
	return &Echo{
		w:            w,
		commandStyle: r.NewStyle().Foreground(colorCommand),
		errorStyle:   r.NewStyle().Foreground(colorError),
		labelStyle:   r.NewStyle().Foreground(colorLabel).Bold(true),
	}
}

// Command prints "+ <command line>".
func (e *Echo) Command(cmdline string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(e.w, e.commandStyle.Render("+ "+cmdline))
}

// Failure prints the captured output of a failed command.
func (e *Echo) Failure(stdout, stderr string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(e.w, e.labelStyle.Render("STDOUT: "))
	fmt.Fprintln(e.w, strings.TrimRight(stdout, "\n"))
	fmt.Fprintln(e.w, e.labelStyle.Render("STDERR: "))
	fmt.Fprintln(e.w, e.errorStyle.Render(strings.TrimRight(stderr, "\n")))
}
