// Package script loads dialogue scripts and speaker mappings from YAML or
// JSON files.
//
// A script looks like:
//
//	episode: Pilot
//	voices:
//	  NARRATOR:
//	    voice_id: 21m00Tcm4TlvDq8ikWAM
//	    settings: {stability: 0.5, similarity_boost: 0.75}
//	dialogues:
//	  - speaker: NARRATOR
//	    text: "[softly] It was late."
//	    cleaned_text: It was late.
//
// JSON files use the same keys. A mapping file holds only the voices map.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/voxcast/tts"
)

var (
	// ErrNoDialogues is returned for a script without dialogue lines.
	ErrNoDialogues = errors.New("script has no dialogues")

	// ErrMissingVoiceID is returned for a mapping entry without a voice.
	ErrMissingVoiceID = errors.New("speaker has no voice_id")
)

// Script is a parsed dialogue script.
type Script struct {
	Episode   string             `yaml:"episode"`
	Voices    tts.SpeakerMapping `yaml:"voices,omitempty"`
	Dialogues []tts.Dialogue     `yaml:"dialogues"`
}

// EpisodeInfo returns the episode description, named after the script file
// when the script does not name it.
func (s Script) EpisodeInfo(path string) tts.EpisodeInfo {
	name := strings.TrimSpace(s.Episode)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return tts.EpisodeInfo{Name: name}
}

// Speakers returns the distinct speakers in order of first appearance.
func (s Script) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range s.Dialogues {
		if !seen[d.Speaker] {
			seen[d.Speaker] = true
			out = append(out, d.Speaker)
		}
	}
	return out
}

// Load reads a script file.
func Load(path string) (Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return Script{}, err
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a script. Dialogue indexes are assigned from position.
func Parse(r io.Reader) (Script, error) {
	var s Script
	if err := decode(r, &s); err != nil {
		return Script{}, err
	}
	if len(s.Dialogues) == 0 {
		return Script{}, ErrNoDialogues
	}

	for i := range s.Dialogues {
		d := &s.Dialogues[i]
		d.Index = i
		d.Speaker = strings.TrimSpace(d.Speaker)
		if d.Speaker == "" {
			return Script{}, fmt.Errorf("dialogue %d: speaker is required", i+1)
		}
	}

	if err := validateMapping(s.Voices); err != nil {
		return Script{}, err
	}
	return s, nil
}

// LoadMapping reads a speaker mapping file.
func LoadMapping(path string) (tts.SpeakerMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m, err := ParseMapping(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMapping decodes a speaker → voice mapping.
func ParseMapping(r io.Reader) (tts.SpeakerMapping, error) {
	m := tts.SpeakerMapping{}
	if err := decode(r, &m); err != nil {
		return nil, err
	}
	if err := validateMapping(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Merge returns base with every entry of override applied on top.
func Merge(base, override tts.SpeakerMapping) tts.SpeakerMapping {
	out := make(tts.SpeakerMapping, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Unmapped returns the script speakers missing from m, sorted.
func Unmapped(s Script, m tts.SpeakerMapping) []string {
	var out []string
	for _, speaker := range s.Speakers() {
		if _, ok := m[speaker]; !ok {
			out = append(out, speaker)
		}
	}
	sort.Strings(out)
	return out
}

func decode(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty document")
		}
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

func validateMapping(m tts.SpeakerMapping) error {
	for speaker, a := range m {
		if strings.TrimSpace(a.VoiceID) == "" {
			return fmt.Errorf("%q: %w", speaker, ErrMissingVoiceID)
		}
	}
	return nil
}
