package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voxcast/tts/engines/elevenlabs"
)

var voicesCmd = &cobra.Command{
	Use:     "voices [FILTER]",
	Short:   "List the voices available to your speech API account",
	Long:    paragraph(fmt.Sprintf("\n%s the voices you can map speakers to, optionally fuzzy filtered by name.", keyword("List"))),
	Example: paragraph("voxcast voices\nvoxcast voices rach"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := elevenlabs.New(cfg.ElevenLabs)
		if err != nil {
			return err
		}

		voices, err := client.Voices(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			voices = filterVoices(voices, args[0])
		} else {
			sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
		}

		out, err := renderMarkdown(voicesMarkdown(voices))
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// voiceNames adapts a voice list to fuzzy.Source.
type voiceNames []elevenlabs.Voice

func (v voiceNames) String(i int) string { return v[i].Name }
func (v voiceNames) Len() int            { return len(v) }

// filterVoices returns the voices whose name fuzzy matches pattern, best
// match first.
func filterVoices(voices []elevenlabs.Voice, pattern string) []elevenlabs.Voice {
	matches := fuzzy.FindFrom(pattern, voiceNames(voices))
	out := make([]elevenlabs.Voice, 0, len(matches))
	for _, m := range matches {
		out = append(out, voices[m.Index])
	}
	return out
}

func voicesMarkdown(voices []elevenlabs.Voice) string {
	if len(voices) == 0 {
		return "No voices found.\n"
	}

	var b strings.Builder
	b.WriteString("| Name | Voice ID | Category | Labels |\n|---|---|---|---|\n")
	for _, v := range voices {
		keys := make([]string, 0, len(v.Labels))
		for k := range v.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		labels := make([]string, 0, len(keys))
		for _, k := range keys {
			labels = append(labels, v.Labels[k])
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", v.Name, v.VoiceID, v.Category, strings.Join(labels, ", "))
	}
	return b.String()
}
