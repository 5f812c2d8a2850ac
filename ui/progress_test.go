package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/voxcast/internal/batch"
	"github.com/dgnsrekt/voxcast/tts"
)

type fakeController struct {
	stats    batch.Stats
	calls    []string
	retryN   int
	retryErr error
}

func (f *fakeController) Pause() {
	f.calls = append(f.calls, "pause")
	f.stats.State = tts.StatePaused
}

func (f *fakeController) Resume() {
	f.calls = append(f.calls, "resume")
	f.stats.State = tts.StateRunning
}

func (f *fakeController) Cancel() {
	f.calls = append(f.calls, "cancel")
	f.stats.State = tts.StateCancelled
}

func (f *fakeController) RetryFailed() (int, error) {
	f.calls = append(f.calls, "retry")
	return f.retryN, f.retryErr
}

func (f *fakeController) Stats() batch.Stats {
	return f.stats
}

func runningController() *fakeController {
	return &fakeController{stats: batch.Stats{State: tts.StateRunning, Total: 4, Remaining: 4, IsProcessing: true}}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestProgressKeys(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		calls []string
	}{
		{"pause", []string{"p"}, []string{"pause"}},
		{"pause toggles", []string{"p", "p"}, []string{"pause", "resume"}},
		{"resume", []string{"r"}, []string{"resume"}},
		{"cancel", []string{"c"}, []string{"cancel"}},
		{"quit cancels active job", []string{"q"}, []string{"cancel"}},
		{"unknown key", []string{"x"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := runningController()
			var m tea.Model = NewProgressModel("Pilot", ctrl, nil)
			for _, k := range tt.keys {
				m, _ = m.Update(key(k))
			}

			if strings.Join(ctrl.calls, ",") != strings.Join(tt.calls, ",") {
				t.Errorf("calls = %v, want %v", ctrl.calls, tt.calls)
			}
		})
	}
}

func TestProgressQuitAfterFinishDoesNotCancel(t *testing.T) {
	ctrl := &fakeController{stats: batch.Stats{State: tts.StateCompleted, Total: 1, Completed: 1}}
	m := NewProgressModel("Pilot", ctrl, nil)

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if len(ctrl.calls) != 0 {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestProgressRetry(t *testing.T) {
	ctrl := &fakeController{
		stats:  batch.Stats{State: tts.StateCompleted, Total: 2, Completed: 1, Failed: 1},
		retryN: 1,
	}
	m := NewProgressModel("Pilot", ctrl, nil)

	_, cmd := m.Update(key("R"))
	if cmd == nil {
		t.Fatal("R should return a command")
	}
	msg := cmd()
	done, ok := msg.(retryDoneMsg)
	if !ok || done.n != 1 || done.err != nil {
		t.Fatalf("msg = %#v", msg)
	}

	next, _ := m.Update(done)
	if !strings.Contains(next.View(), "Retrying 1 item(s)") {
		t.Error("retry notice not shown")
	}

	ctrl.retryErr = tts.ErrNothingToRetry
	next, _ = next.Update(retryDoneMsg{err: ctrl.retryErr})
	if !strings.Contains(next.View(), tts.ErrNothingToRetry.Error()) {
		t.Error("retry error not shown")
	}
}

func TestProgressEvents(t *testing.T) {
	ctrl := runningController()
	events := make(chan batch.Event, 1)
	var m tea.Model = NewProgressModel("Pilot", ctrl, events)

	stats := batch.Stats{State: tts.StateRunning, Total: 4, Completed: 1, Remaining: 3, Percentage: 25, IsProcessing: true}
	m, cmd := m.Update(eventMsg{event: batch.Event{
		Type:  batch.EventItemComplete,
		Stats: stats,
		Item:  &batch.ItemEvent{ID: "001_NARRATOR", ProcessingTime: 2 * time.Second},
	}})
	if cmd == nil {
		t.Error("model should keep listening for events")
	}

	m, _ = m.Update(eventMsg{event: batch.Event{
		Type:  batch.EventItemError,
		Stats: stats,
		Item:  &batch.ItemEvent{ID: "002a_HERO", Error: "status 429: busy"},
	}})

	view := m.View()
	for _, want := range []string{"Pilot", "001_NARRATOR", "002a_HERO", "status 429: busy", "25%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressTickQuitsWhenDone(t *testing.T) {
	tests := []struct {
		name     string
		stats    batch.Stats
		wantDone bool
		wantQuit bool
	}{
		{"running", batch.Stats{State: tts.StateRunning}, false, false},
		{"completed", batch.Stats{State: tts.StateCompleted, Completed: 2, Total: 2}, true, true},
		{"completed with failures", batch.Stats{State: tts.StateCompleted, Completed: 1, Failed: 1, Total: 2}, true, false},
		{"cancelled", batch.Stats{State: tts.StateCancelled}, true, true},
		{"aborted", batch.Stats{State: tts.StateAborted}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{stats: tt.stats}
			m := NewProgressModel("Pilot", ctrl, nil)

			next, cmd := m.Update(tickMsg(time.Now()))
			if got := next.(ProgressModel).Done(); got != tt.wantDone {
				t.Errorf("Done = %v, want %v", got, tt.wantDone)
			}
			if cmd == nil {
				t.Fatal("expected a command")
			}
			_, quit := cmd().(tea.QuitMsg)
			if tt.wantQuit && !quit {
				t.Error("expected quit")
			}
			if !tt.wantQuit && quit {
				t.Error("unexpected quit")
			}
		})
	}
}

func TestProgressWindowSize(t *testing.T) {
	m := NewProgressModel(strings.Repeat("very long title ", 10), runningController(), nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})

	for _, line := range strings.Split(next.View(), "\n") {
		if w := lipgloss.Width(line); w > 40 {
			t.Errorf("line wider than window (%d): %q", w, line)
		}
	}
}

func TestAbortedEventShowsError(t *testing.T) {
	s := NewStatusDisplay()
	s.UpdateFromEvent(batch.Event{
		Type:  batch.EventError,
		Stats: batch.Stats{State: tts.StateAborted},
		Err:   errors.New("disk full"),
	})

	if !strings.Contains(s.DetailedStatus(60), "disk full") {
		t.Error("error not shown")
	}
}
