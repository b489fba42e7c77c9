package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-procbatch/internal/pool"
	"github.com/randomizedcoder/go-procbatch/internal/stats"
	"github.com/randomizedcoder/go-procbatch/internal/timeseries"
)

// recentLimit is how many finished jobs the dashboard lists.
const recentLimit = 8

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StartMsg announces a new batch.
type StartMsg struct {
	RunID string
	Total int
}

// ProgressMsg reports how many jobs have been picked up by workers.
type ProgressMsg struct {
	Started int
	Total   int
}

// ItemMsg reports one finished job.
type ItemMsg struct {
	Index   int
	Name    string
	OK      bool
	Elapsed time.Duration
}

// FinishMsg reports the end of the batch.
type FinishMsg struct {
	Elapsed time.Duration
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// finished is one row in the recent-jobs list.
type finished struct {
	name    string
	ok      bool
	elapsed time.Duration
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	workers     int
	metricsAddr string

	// Current state
	runID     string
	total     int
	started   int
	succeeded int
	failed    int
	recent    []finished
	failures  []string
	durations *stats.DurationDigest
	rate      *timeseries.RateTracker
	startTime time.Time
	elapsed   time.Duration
	done      bool

	showFailures bool

	// Display options
	width  int
	height int

	// Quit flag
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	Workers     int
	MetricsAddr string
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		workers:     cfg.Workers,
		metricsAddr: cfg.MetricsAddr,
		durations:   stats.NewDurationDigest(),
		rate:        timeseries.NewRateTracker(),
		startTime:   time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "f":
			m.showFailures = !m.showFailures
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.done {
			return m, nil
		}
		m.elapsed = time.Since(m.startTime)
		m.rate.Sample()
		return m, tickCmd()

	case StartMsg:
		m.runID = msg.RunID
		m.total = msg.Total
		m.startTime = time.Now()
		return m, nil

	case ProgressMsg:
		if msg.Started > m.started {
			m.started = msg.Started
		}
		m.total = msg.Total
		return m, nil

	case ItemMsg:
		m.durations.Add(msg.Elapsed)
		m.rate.Add(1)
		if msg.OK {
			m.succeeded++
		} else {
			m.failed++
			m.failures = append(m.failures, msg.Name)
		}
		m.recent = append(m.recent, finished{name: msg.Name, ok: msg.OK, elapsed: msg.Elapsed})
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
		return m, nil

	case FinishMsg:
		m.done = true
		m.elapsed = msg.Elapsed
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Finished returns the number of finished jobs.
func (m Model) Finished() int {
	return m.succeeded + m.failed
}

// Running returns the number of jobs started but not finished.
func (m Model) Running() int {
	if n := m.started - m.Finished(); n > 0 {
		return n
	}
	return 0
}

// Progress returns the fraction of finished jobs (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.Finished()) / float64(m.total)
}

// FailureRate returns the fraction of finished jobs that failed.
func (m Model) FailureRate() float64 {
	if m.Finished() == 0 {
		return 0
	}
	return float64(m.failed) / float64(m.Finished())
}

// Done reports whether the batch has finished.
func (m Model) Done() bool {
	return m.done
}

// =============================================================================
// Helper for external use
// =============================================================================

// Sender delivers messages to a running program; *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Callbacks returns pool callbacks that forward batch events to the TUI.
// names maps job index to display name.
func Callbacks(s Sender, names []string) pool.Callbacks {
	name := func(i int) string {
		if i >= 0 && i < len(names) {
			return names[i]
		}
		return fmt.Sprintf("job %d", i)
	}
	return pool.Callbacks{
		OnStart: func(runID string, total int) {
			s.Send(StartMsg{RunID: runID, Total: total})
		},
		OnProgress: func(started, total int) {
			s.Send(ProgressMsg{Started: started, Total: total})
		},
		OnItemDone: func(index int, ok bool, elapsed time.Duration) {
			s.Send(ItemMsg{Index: index, Name: name(index), OK: ok, Elapsed: elapsed})
		},
		OnFinish: func(elapsed time.Duration) {
			s.Send(FinishMsg{Elapsed: elapsed})
		},
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(s Sender) {
	if s != nil {
		s.Send(QuitMsg{})
	}
}
