// Package tts holds the domain types shared by the voxcast synthesis pipeline:
// dialogue input, voice assignments, work items and the synthesizer boundary.
package tts

import (
	"context"
	"time"
)

// Synthesizer converts text to encoded audio with a given voice.
type Synthesizer interface {
	// Synthesize performs a single text-to-speech request. Implementations
	// must not retry; retries belong to Client.
	Synthesize(ctx context.Context, voiceID, text string, settings VoiceSettings) ([]byte, error)
}

// SynthesizerFunc adapts a plain function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, voiceID, text string, settings VoiceSettings) ([]byte, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, voiceID, text string, settings VoiceSettings) ([]byte, error) {
	return f(ctx, voiceID, text, settings)
}

// VoiceSettings are synthesis parameters passed verbatim to the engine.
type VoiceSettings struct {
	Stability       float64 `yaml:"stability" json:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost" json:"similarityBoost"`
	Style           float64 `yaml:"style" json:"style"`
	SpeakerBoost    bool    `yaml:"speaker_boost" json:"speakerBoost"`
	Model           string  `yaml:"model,omitempty" json:"model,omitempty"`
	Language        string  `yaml:"language,omitempty" json:"language,omitempty"`
	OutputFormat    string  `yaml:"output_format,omitempty" json:"outputFormat,omitempty"`
}

// VoiceAssignment maps a script speaker to a synthesis voice.
type VoiceAssignment struct {
	VoiceID  string        `yaml:"voice_id" json:"voiceId"`
	Settings VoiceSettings `yaml:"settings" json:"settings"`
}

// SpeakerMapping associates speaker names with voice assignments.
type SpeakerMapping map[string]VoiceAssignment

// Speakers returns the mapped speaker names.
func (m SpeakerMapping) Speakers() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

// Dialogue is one parsed line of a script. CleanedText has stage directions
// removed; when empty, Text is used as is.
type Dialogue struct {
	Index       int    `yaml:"index" json:"index"`
	Speaker     string `yaml:"speaker" json:"speaker"`
	Text        string `yaml:"text" json:"text"`
	CleanedText string `yaml:"cleaned_text,omitempty" json:"cleanedText,omitempty"`
}

// SpeakableText returns the text that should be sent to synthesis.
func (d Dialogue) SpeakableText() string {
	if d.CleanedText != "" {
		return d.CleanedText
	}
	return d.Text
}

// EpisodeInfo describes the episode a job belongs to.
type EpisodeInfo struct {
	Name string `yaml:"name" json:"name"`
}

// ItemStatus is the processing status of a WorkItem.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// WorkItem is one chunk of dialogue text to be synthesized into one file.
type WorkItem struct {
	ID             string
	Speaker        string
	Text           string
	OriginalIndex  int
	ChunkIndex     int
	TotalChunks    int
	VoiceID        string
	Settings       VoiceSettings
	Status         ItemStatus
	Attempts       int
	CharacterCount int

	// Set on completion.
	Filename       string
	AudioSize      int
	ProcessingTime time.Duration

	// Set on failure.
	Error string
}

// AudioFilename returns the audio filename for an item id.
func AudioFilename(id string) string {
	return id + ".mp3"
}

// Reset puts a failed item back into the pending state for a new attempt
// cycle.
func (w *WorkItem) Reset() {
	w.Status = StatusPending
	w.Attempts = 0
	w.Error = ""
}
