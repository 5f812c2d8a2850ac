package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/voxcast/internal/batch"
	"github.com/dgnsrekt/voxcast/tts"
)

// StatusDisplay renders job progress.
type StatusDisplay struct {
	stats        batch.Stats
	errorMessage string
}

// NewStatusDisplay creates a new status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{}
}

// Update replaces the displayed snapshot.
func (s *StatusDisplay) Update(stats batch.Stats) {
	s.stats = stats
	if stats.State != tts.StateAborted {
		s.errorMessage = ""
	}
}

// UpdateFromEvent updates the display from an engine event.
func (s *StatusDisplay) UpdateFromEvent(ev batch.Event) {
	s.Update(ev.Stats)
	if ev.Type == batch.EventError && ev.Err != nil {
		s.errorMessage = ev.Err.Error()
	}
}

// Stats returns the displayed snapshot.
func (s *StatusDisplay) Stats() batch.Stats {
	return s.stats
}

// CompactStatus returns a one-line status.
func (s *StatusDisplay) CompactStatus() string {
	st := s.stats
	status := lipgloss.NewStyle().Foreground(stateColor(st.State)).
		Render(fmt.Sprintf("%s %s", stateIcon(st.State), st.State))

	counterStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	status += counterStyle.Render(fmt.Sprintf(" %d/%d", st.Completed, st.Total))

	if st.Failed > 0 {
		failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
		status += failStyle.Render(fmt.Sprintf(" %d failed", st.Failed))
	}
	return status
}

// DetailedStatus returns a multi-line status panel.
func (s *StatusDisplay) DetailedStatus(width int) string {
	st := s.stats
	var lines []string

	stateStyle := lipgloss.NewStyle().Foreground(stateColor(st.State)).Bold(true)
	lines = append(lines, stateStyle.Render(fmt.Sprintf("%s %s", stateIcon(st.State), st.State)))

	if width > 20 {
		lines = append(lines, fmt.Sprintf("%s %3d%%", s.ProgressBar(width-6), st.Percentage))
	}

	lines = append(lines, fmt.Sprintf("Items: %d done, %d failed, %d left of %d",
		st.Completed, st.Failed, st.Remaining, st.Total))

	timing := "Elapsed: " + formatDuration(st.Elapsed)
	if st.Completed > 0 && st.Remaining > 0 {
		timing += "  Remaining: ~" + formatDuration(st.EstimatedRemaining)
	}
	lines = append(lines, timing)

	if st.AudioBytes > 0 {
		lines = append(lines, fmt.Sprintf("Audio: %s, %s characters",
			humanize.Bytes(uint64(st.AudioBytes)), humanize.Comma(int64(st.TotalCharacters))))
	}

	if st.CurrentItem != "" {
		lines = append(lines, "Current: "+truncate.StringWithTail(st.CurrentItem, uint(max(width-10, 1)), "..."))
	}

	if s.errorMessage != "" {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
		errorLine := truncate.StringWithTail(s.errorMessage, uint(max(width-9, 1)), "...")
		lines = append(lines, errorStyle.Render("Error: "+errorLine))
	}

	return strings.Join(lines, "\n")
}

// ProgressBar returns a bar of the given width.
func (s *StatusDisplay) ProgressBar(width int) string {
	if width < 10 {
		return ""
	}

	var progress float64
	if s.stats.Total > 0 {
		progress = float64(s.stats.Completed+s.stats.Failed) / float64(s.stats.Total)
	}

	filledWidth := int(progress * float64(width))
	if filledWidth > width {
		filledWidth = width
	}

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	filledStyle := lipgloss.NewStyle().Foreground(stateColor(s.stats.State))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))

	return filledStyle.Render(filled) + emptyStyle.Render(empty)
}

func stateColor(state tts.JobState) lipgloss.Color {
	switch state {
	case tts.StateRunning:
		return lipgloss.Color("#00FF00") // Green
	case tts.StatePaused:
		return lipgloss.Color("#FFFF00") // Yellow
	case tts.StateCompleted:
		return lipgloss.Color("#00AAFF") // Blue
	case tts.StateCancelled:
		return lipgloss.Color("#FF8800") // Orange
	case tts.StateAborted:
		return lipgloss.Color("#FF0000") // Red
	default:
		return lipgloss.Color("#888888") // Gray
	}
}

func stateIcon(state tts.JobState) string {
	switch state {
	case tts.StateRunning:
		return "▶"
	case tts.StatePaused:
		return "⏸"
	case tts.StateCompleted:
		return "✓"
	case tts.StateCancelled:
		return "◼"
	case tts.StateAborted:
		return "✗"
	default:
		return "○"
	}
}

// formatDuration formats a duration as m:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
