package queue

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/voxcast/tts"
)

type fakeDirs struct {
	calls   int
	episode string
	err     error
}

func (f *fakeDirs) CreateEpisodeDir(episode string, now time.Time) (string, error) {
	f.calls++
	f.episode = episode
	if f.err != nil {
		return "", f.err
	}
	return "/out/" + episode + "_" + now.Format("2006-01-02"), nil
}

func testMapping() tts.SpeakerMapping {
	return tts.SpeakerMapping{
		"NARRATOR": {VoiceID: "voice-narrator", Settings: tts.VoiceSettings{Stability: 0.5}},
		"HERO":     {VoiceID: "voice-hero", Settings: tts.VoiceSettings{Style: 0.3}},
	}
}

func newTestBuilder(dirs DirCreator, opts ...Option) *Builder {
	clock := func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }
	opts = append([]Option{WithLogger(log.New(io.Discard)), WithClock(clock)}, opts...)
	return NewBuilder(dirs, opts...)
}

func TestBuildSplitsLongDialogue(t *testing.T) {
	dirs := &fakeDirs{}
	b := newTestBuilder(dirs)

	dialogues := []tts.Dialogue{
		{Speaker: "NARRATOR", Text: "Short line."},
		{Speaker: "HERO", Text: strings.Repeat("A", 1500)},
		{Speaker: "NARRATOR", Text: "Another short line."},
	}

	res, err := b.Build(dialogues, testMapping(), tts.EpisodeInfo{Name: "Pilot"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if res.EpisodeDir != "/out/Pilot_2024-01-02" {
		t.Errorf("EpisodeDir = %q", res.EpisodeDir)
	}
	if dirs.calls != 1 {
		t.Errorf("Expected one directory, got %d", dirs.calls)
	}

	expected := []struct {
		id            string
		originalIndex int
		chunkIndex    int
		totalChunks   int
	}{
		{"001_NARRATOR", 0, 0, 1},
		{"002a_HERO", 1, 0, 2},
		{"002b_HERO", 1, 1, 2},
		{"003_NARRATOR", 2, 0, 1},
	}

	if len(res.Items) != len(expected) {
		t.Fatalf("Expected %d items, got %d", len(expected), len(res.Items))
	}
	for i, want := range expected {
		item := res.Items[i]
		if item.ID != want.id || item.OriginalIndex != want.originalIndex ||
			item.ChunkIndex != want.chunkIndex || item.TotalChunks != want.totalChunks {
			t.Errorf("item %d = {%s %d %d %d}, want %+v", i, item.ID, item.OriginalIndex, item.ChunkIndex, item.TotalChunks, want)
		}
		if item.Status != tts.StatusPending || item.Attempts != 0 {
			t.Errorf("item %d not pending: %s/%d", i, item.Status, item.Attempts)
		}
		if item.CharacterCount != len(item.Text) {
			t.Errorf("item %d CharacterCount = %d, text has %d", i, item.CharacterCount, len(item.Text))
		}
	}

	if res.Items[1].VoiceID != "voice-hero" || res.Items[1].Settings.Style != 0.3 {
		t.Errorf("Voice assignment not copied: %+v", res.Items[1])
	}
}

func TestBuildSkipsUnmappedSpeaker(t *testing.T) {
	b := newTestBuilder(&fakeDirs{})

	dialogues := []tts.Dialogue{
		{Speaker: "NARRATOR", Text: "Once upon a time."},
		{Speaker: "GOBLIN", Text: "Grr."},
		{Speaker: "HERO", Text: "Stand back!"},
	}

	res, err := b.Build(dialogues, testMapping(), tts.EpisodeInfo{Name: "Pilot"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(res.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(res.Items))
	}
	for _, item := range res.Items {
		if item.Speaker == "GOBLIN" {
			t.Error("Unmapped speaker produced a work item")
		}
	}
	if res.Items[1].ID != "003_HERO" {
		t.Errorf("Expected ids to keep the input position, got %s", res.Items[1].ID)
	}

	if len(res.Skipped) != 1 || res.Skipped[0].Speaker != "GOBLIN" || res.Skipped[0].Reason != ReasonUnmapped {
		t.Errorf("Unexpected skipped: %+v", res.Skipped)
	}
}

func TestBuildSuggestsMappedSpeaker(t *testing.T) {
	b := newTestBuilder(&fakeDirs{})

	res, err := b.Build([]tts.Dialogue{
		{Speaker: "NARRATOR", Text: "Hello."},
		{Speaker: "NARATOR", Text: "Typo."},
	}, testMapping(), tts.EpisodeInfo{Name: "Pilot"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(res.Skipped) != 1 || res.Skipped[0].Suggestion != "NARRATOR" {
		t.Errorf("Expected suggestion NARRATOR, got %+v", res.Skipped)
	}
}

func TestBuildNoItems(t *testing.T) {
	tests := []struct {
		name      string
		dialogues []tts.Dialogue
	}{
		{"empty script", nil},
		{"all unmapped", []tts.Dialogue{{Speaker: "GOBLIN", Text: "Grr."}, {Speaker: "ORC", Text: "Hm."}}},
		{"only blank text", []tts.Dialogue{{Speaker: "HERO", Text: "   "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dirs := &fakeDirs{}
			b := newTestBuilder(dirs)

			_, err := b.Build(tt.dialogues, testMapping(), tts.EpisodeInfo{Name: "Pilot"})
			if !errors.Is(err, tts.ErrNoWorkItems) {
				t.Errorf("Expected ErrNoWorkItems, got %v", err)
			}
			if dirs.calls != 0 {
				t.Error("Directory created for an empty job")
			}
		})
	}
}

func TestBuildDirError(t *testing.T) {
	dirErr := errors.New("permission denied")
	b := newTestBuilder(&fakeDirs{err: dirErr})

	_, err := b.Build([]tts.Dialogue{{Speaker: "HERO", Text: "Hi."}}, testMapping(), tts.EpisodeInfo{Name: "Pilot"})
	if !errors.Is(err, dirErr) {
		t.Errorf("Expected directory error, got %v", err)
	}
}

func TestPlanPrefersCleanedText(t *testing.T) {
	b := newTestBuilder(&fakeDirs{})

	items, _ := b.Plan([]tts.Dialogue{
		{Speaker: "HERO", Text: "(whispering) Over here.", CleanedText: "Over here."},
		{Speaker: "HERO", Text: "  Plain text.  "},
	}, testMapping())

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Text != "Over here." {
		t.Errorf("Expected cleaned text, got %q", items[0].Text)
	}
	if items[1].Text != "Plain text." {
		t.Errorf("Expected trimmed text, got %q", items[1].Text)
	}
}

func TestPlanChunkCountBound(t *testing.T) {
	b := newTestBuilder(&fakeDirs{}, WithMaxChunkChars(50))

	dialogues := []tts.Dialogue{
		{Speaker: "HERO", Text: strings.Repeat("x", 49)},
		{Speaker: "HERO", Text: strings.Repeat("y", 50)},
		{Speaker: "HERO", Text: strings.Repeat("z", 175)},
		{Speaker: "NARRATOR", Text: strings.Repeat("w ", 100)},
		{Speaker: "GOBLIN", Text: strings.Repeat("g", 500)},
	}

	items, _ := b.Plan(dialogues, testMapping())

	bound := 0
	for _, d := range dialogues {
		if _, ok := testMapping()[d.Speaker]; !ok {
			continue
		}
		n := len(strings.TrimSpace(d.Text))
		bound += (n + 49) / 50
	}

	if len(items) > bound {
		t.Errorf("Got %d items, bound is %d", len(items), bound)
	}
	for _, item := range items {
		if item.CharacterCount > 50 {
			t.Errorf("Item %s has %d characters", item.ID, item.CharacterCount)
		}
	}
}

func TestChunkSuffix(t *testing.T) {
	tests := []struct {
		index, total int
		expected     string
	}{
		{0, 1, ""},
		{0, 2, "a"},
		{1, 2, "b"},
		{25, 30, "z"},
		{26, 30, "aa"},
		{27, 30, "ab"},
		{51, 60, "az"},
		{52, 60, "ba"},
	}

	for _, tt := range tests {
		if got := ChunkSuffix(tt.index, tt.total); got != tt.expected {
			t.Errorf("ChunkSuffix(%d, %d) = %q, want %q", tt.index, tt.total, got, tt.expected)
		}
	}
}

func TestItemID(t *testing.T) {
	tests := []struct {
		originalIndex, chunkIndex, totalChunks int
		speaker                                string
		expected                               string
	}{
		{3, 1, 3, "NARRATOR", "004b_NARRATOR"},
		{0, 0, 1, "Old Man", "001_Old_Man"},
		{11, 0, 1, "a/b", "012_a_b"},
		{999, 0, 1, "X", "1000_X"},
		{0, 0, 1, "///", "001_speaker"},
	}

	for _, tt := range tests {
		if got := ItemID(tt.originalIndex, tt.chunkIndex, tt.totalChunks, tt.speaker); got != tt.expected {
			t.Errorf("ItemID(%d, %d, %d, %q) = %q, want %q", tt.originalIndex, tt.chunkIndex, tt.totalChunks, tt.speaker, got, tt.expected)
		}
	}
}
