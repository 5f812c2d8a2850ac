package queue

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/voxcast/tts"
	"github.com/dgnsrekt/voxcast/tts/chunk"
	"github.com/dgnsrekt/voxcast/utils"
)

// DirCreator creates the output directory for an episode.
type DirCreator interface {
	CreateEpisodeDir(episode string, now time.Time) (string, error)
}

// Skip reasons.
const (
	ReasonUnmapped  = "unmapped speaker"
	ReasonEmptyText = "empty text"
)

// Skipped records a dialogue that produced no work items.
type Skipped struct {
	Index      int
	Speaker    string
	Reason     string
	Suggestion string // Closest mapped speaker, if any
}

// Result is the output of Build.
type Result struct {
	Items      []*tts.WorkItem
	EpisodeDir string
	Skipped    []Skipped
}

// Builder turns dialogues into work items.
type Builder struct {
	dirs          DirCreator
	maxChunkChars int
	logger        *log.Logger
	now           func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxChunkChars sets the per-item character budget.
func WithMaxChunkChars(n int) Option {
	return func(b *Builder) { b.maxChunkChars = n }
}

// WithLogger sets the logger used for skip warnings.
func WithLogger(logger *log.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithClock sets the time source used for episode directory names.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a builder that creates episode directories with dirs.
func NewBuilder(dirs DirCreator, opts ...Option) *Builder {
	b := &Builder{
		dirs:          dirs,
		maxChunkChars: tts.DefaultMaxChunkChars,
		logger:        log.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build plans the work items for dialogues and creates the episode
// directory. When no item can be produced it returns tts.ErrNoWorkItems
// without touching the filesystem.
func (b *Builder) Build(dialogues []tts.Dialogue, mapping tts.SpeakerMapping, episode tts.EpisodeInfo) (Result, error) {
	items, skipped := b.Plan(dialogues, mapping)
	res := Result{Items: items, Skipped: skipped}

	if len(items) == 0 {
		return res, fmt.Errorf("%w (%d dialogues, %d skipped)", tts.ErrNoWorkItems, len(dialogues), len(skipped))
	}

	dir, err := b.dirs.CreateEpisodeDir(episode.Name, b.now())
	if err != nil {
		return res, err
	}
	res.EpisodeDir = dir

	return res, nil
}

// Plan expands dialogues into work items in input order, keeping the chunks
// of one dialogue contiguous. Dialogues whose speaker has no mapping, or
// whose text is blank, are skipped.
func (b *Builder) Plan(dialogues []tts.Dialogue, mapping tts.SpeakerMapping) ([]*tts.WorkItem, []Skipped) {
	var (
		items   []*tts.WorkItem
		skipped []Skipped
	)
	speakers := mapping.Speakers()
	sort.Strings(speakers)

	for i, d := range dialogues {
		voice, ok := mapping[d.Speaker]
		if !ok {
			s := Skipped{Index: i, Speaker: d.Speaker, Reason: ReasonUnmapped, Suggestion: suggest(d.Speaker, speakers)}
			skipped = append(skipped, s)
			b.logger.Warn("Skipping dialogue", "index", i, "speaker", d.Speaker, "reason", s.Reason, "suggestion", s.Suggestion)
			continue
		}

		chunks := chunk.Split(strings.TrimSpace(d.SpeakableText()), b.maxChunkChars)
		if len(chunks) == 0 {
			skipped = append(skipped, Skipped{Index: i, Speaker: d.Speaker, Reason: ReasonEmptyText})
			b.logger.Warn("Skipping dialogue", "index", i, "speaker", d.Speaker, "reason", ReasonEmptyText)
			continue
		}

		for c, text := range chunks {
			items = append(items, &tts.WorkItem{
				ID:             ItemID(i, c, len(chunks), d.Speaker),
				Speaker:        d.Speaker,
				Text:           text,
				OriginalIndex:  i,
				ChunkIndex:     c,
				TotalChunks:    len(chunks),
				VoiceID:        voice.VoiceID,
				Settings:       voice.Settings,
				Status:         tts.StatusPending,
				CharacterCount: utf8.RuneCountInString(text),
			})
		}
	}

	return items, skipped
}

// ItemID builds a work item id: the 1-based dialogue position padded to
// three digits, the chunk suffix and the file-safe speaker name.
func ItemID(originalIndex, chunkIndex, totalChunks int, speaker string) string {
	name := utils.SafeName(speaker)
	if name == "" {
		name = "speaker"
	}
	return fmt.Sprintf("%03d%s_%s", originalIndex+1, ChunkSuffix(chunkIndex, totalChunks), name)
}

// ChunkSuffix returns "" for an unsplit dialogue, otherwise a, b, ... z,
// aa, ab, ...
func ChunkSuffix(index, total int) string {
	if total <= 1 {
		return ""
	}
	var b []byte
	for n := index; ; n = n/26 - 1 {
		b = append([]byte{byte('a' + n%26)}, b...)
		if n < 26 {
			break
		}
	}
	return string(b)
}

func suggest(speaker string, mapped []string) string {
	if speaker == "" || len(mapped) == 0 {
		return ""
	}
	matches := fuzzy.Find(speaker, mapped)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
