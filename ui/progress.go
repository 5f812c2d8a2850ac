// Package ui provides the interactive progress view for a synthesis job.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/voxcast/internal/batch"
	"github.com/dgnsrekt/voxcast/tts"
)

const (
	maxLogLines  = 8
	tickInterval = 250 * time.Millisecond
)

// Controller is the part of batch.Engine the view drives.
type Controller interface {
	Pause()
	Resume()
	Cancel()
	RetryFailed() (int, error)
	Stats() batch.Stats
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"})
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"})
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

// eventMsg carries an engine event into the program.
type eventMsg struct {
	event batch.Event
}

// tickMsg triggers a stats refresh so elapsed time keeps moving.
type tickMsg time.Time

// retryDoneMsg reports the result of a retry request.
type retryDoneMsg struct {
	n   int
	err error
}

// ProgressModel is the bubbletea model of the progress view.
type ProgressModel struct {
	title   string
	ctrl    Controller
	events  <-chan batch.Event
	spinner spinner.Model
	status  *StatusDisplay
	log     []string
	notice  string
	width   int
	done    bool
}

// NewProgressModel creates a progress view for ctrl. Events received on
// events are shown in the activity log.
func NewProgressModel(title string, ctrl Controller, events <-chan batch.Event) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8E8E8E", Dark: "#747373"})

	status := NewStatusDisplay()
	status.Update(ctrl.Stats())

	return ProgressModel{
		title:   title,
		ctrl:    ctrl,
		events:  events,
		spinner: sp,
		status:  status,
		width:   80,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events), tick())
}

func waitForEvent(events <-chan batch.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case eventMsg:
		m.status.UpdateFromEvent(msg.event)
		if line := logLine(msg.event); line != "" {
			m.log = append(m.log, line)
			if len(m.log) > maxLogLines {
				m.log = m.log[len(m.log)-maxLogLines:]
			}
		}
		return m, waitForEvent(m.events)

	case tickMsg:
		m.status.Update(m.ctrl.Stats())
		return m.checkDone(tick())

	case retryDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("Retrying %d item(s)", msg.n)
			m.done = false
		}
		m.status.Update(m.ctrl.Stats())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// checkDone marks the view finished once the job reached a terminal state.
// A run without failures quits on its own; otherwise the view stays up so
// the failed items can be retried.
func (m ProgressModel) checkDone(next tea.Cmd) (tea.Model, tea.Cmd) {
	st := m.status.Stats()
	if !st.State.IsTerminal() {
		m.done = false
		return m, next
	}
	m.done = true
	if st.State == tts.StateCompleted && st.Failed > 0 {
		return m, next
	}
	return m, tea.Quit
}

func (m ProgressModel) handleKey(key string) (tea.Model, tea.Cmd) {
	state := m.status.Stats().State

	switch key {
	case "p", " ":
		if state == tts.StatePaused {
			m.ctrl.Resume()
		} else {
			m.ctrl.Pause()
		}
	case "r":
		m.ctrl.Resume()
	case "c":
		m.ctrl.Cancel()
	case "R":
		ctrl := m.ctrl
		return m, func() tea.Msg {
			n, err := ctrl.RetryFailed()
			return retryDoneMsg{n: n, err: err}
		}
	case "q", "esc", "ctrl+c":
		if state.IsActive() {
			m.ctrl.Cancel()
		}
		return m, tea.Quit
	default:
		return m, nil
	}

	m.status.Update(m.ctrl.Stats())
	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder
	width := max(m.width, 20)

	header := titleStyle.Render(truncate.StringWithTail(m.title, uint(width-4), "..."))
	if m.status.Stats().State.IsActive() {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header + "\n\n")
	b.WriteString(m.status.DetailedStatus(width) + "\n")

	if len(m.log) > 0 {
		b.WriteString("\n")
		for _, line := range m.log {
			b.WriteString(truncate.StringWithTail(line, uint(width), "…") + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + helpStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.help()))
	return b.String()
}

func (m ProgressModel) help() string {
	st := m.status.Stats()
	switch {
	case st.State.IsActive():
		return "p pause/resume • c cancel • q quit"
	case st.State == tts.StateCompleted && st.Failed > 0:
		return "R retry failed • q quit"
	default:
		return "q quit"
	}
}

// logLine formats an item event for the activity log. Column widths are
// measured in cells so wide speaker names line up.
func logLine(ev batch.Event) string {
	if ev.Item == nil {
		return ""
	}
	id := runewidth.FillRight(ev.Item.ID, 20)

	switch ev.Type {
	case batch.EventItemComplete:
		return okStyle.Render("✓") + " " + id + " " + formatDuration(ev.Item.ProcessingTime)
	case batch.EventItemError:
		return failStyle.Render("✗") + " " + id + " " + ev.Item.Error
	default:
		return ""
	}
}

// Done reports whether the job reached a terminal state.
func (m ProgressModel) Done() bool {
	return m.done
}

// Run shows the progress view until the job ends or the user quits.
func Run(title string, ctrl Controller, events <-chan batch.Event, opts ...tea.ProgramOption) error {
	if _, err := tea.NewProgram(NewProgressModel(title, ctrl, events), opts...).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}
