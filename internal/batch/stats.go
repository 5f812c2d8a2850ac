package batch

import (
	"math"
	"time"

	"github.com/dgnsrekt/voxcast/internal/artifact"
	"github.com/dgnsrekt/voxcast/tts"
)

// Stats is a point-in-time view of job progress.
type Stats struct {
	State tts.JobState `json:"state"`

	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Remaining  int `json:"remaining"`
	Percentage int `json:"percentage"`

	Elapsed            time.Duration `json:"elapsed"`
	EstimatedRemaining time.Duration `json:"estimatedRemaining"`
	AvgTimePerItem     time.Duration `json:"avgTimePerItem"`

	IsProcessing bool   `json:"isProcessing"`
	IsPaused     bool   `json:"isPaused"`
	CurrentItem  string `json:"currentItem,omitempty"`

	TotalCharacters int   `json:"totalCharacters"` // Characters synthesized successfully
	AudioBytes      int64 `json:"audioBytes"`
}

// Percent returns round(100*completed/total). It only reaches 100 when
// nothing remains.
func Percent(completed, total, remaining int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(completed) / float64(total)))
	if remaining > 0 && p > 99 {
		p = 99
	}
	return p
}

// Record converts the snapshot to its metadata form.
func (s Stats) Record() artifact.StatsRecord {
	return artifact.StatsRecord{
		State:              s.State.String(),
		Total:              s.Total,
		Completed:          s.Completed,
		Failed:             s.Failed,
		Remaining:          s.Remaining,
		Percentage:         s.Percentage,
		Elapsed:            s.Elapsed.Milliseconds(),
		EstimatedRemaining: s.EstimatedRemaining.Milliseconds(),
		AvgTimePerItem:     s.AvgTimePerItem.Milliseconds(),
		IsProcessing:       s.IsProcessing,
		IsPaused:           s.IsPaused,
		CurrentItem:        s.CurrentItem,
		TotalCharacters:    s.TotalCharacters,
		AudioBytes:         s.AudioBytes,
	}
}

// statsLocked computes stats for j. Callers hold the engine lock.
func (j *job) statsLocked(now time.Time) Stats {
	state := j.sm.Current()
	s := Stats{
		State:        state,
		Total:        len(j.queue),
		Completed:    len(j.processed),
		Failed:       len(j.failed),
		IsProcessing: state.IsActive(),
		IsPaused:     state == tts.StatePaused,
	}
	s.Remaining = s.Total - s.Completed - s.Failed
	s.Percentage = Percent(s.Completed, s.Total, s.Remaining)

	if j.current != nil {
		s.CurrentItem = j.current.ID
	}
	for _, item := range j.processed {
		s.TotalCharacters += item.CharacterCount
		s.AudioBytes += int64(item.AudioSize)
	}

	switch {
	case j.startTime.IsZero():
	case !j.endTime.IsZero():
		s.Elapsed = j.endTime.Sub(j.startTime)
	default:
		s.Elapsed = now.Sub(j.startTime)
	}

	if s.Completed > 0 {
		s.AvgTimePerItem = s.Elapsed / time.Duration(s.Completed)
		s.EstimatedRemaining = s.AvgTimePerItem * time.Duration(s.Remaining)
	}

	return s
}
