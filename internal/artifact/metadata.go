package artifact

import (
	"time"

	"github.com/dgnsrekt/voxcast/tts"
)

// Metadata is the durable summary of a job, written on completion.
// Durations are stored in milliseconds.
type Metadata struct {
	Episode        string      `json:"episode"`
	JobID          string      `json:"jobId"`
	ProcessedAt    time.Time   `json:"processedAt"`
	ProcessingTime int64       `json:"processingTime"`
	Stats          StatsRecord `json:"stats"`
	Items          ItemsRecord `json:"items"`
}

// StatsRecord is a stats snapshot.
type StatsRecord struct {
	State              string `json:"state"`
	Total              int    `json:"total"`
	Completed          int    `json:"completed"`
	Failed             int    `json:"failed"`
	Remaining          int    `json:"remaining"`
	Percentage         int    `json:"percentage"`
	Elapsed            int64  `json:"elapsed"`
	EstimatedRemaining int64  `json:"estimatedRemaining"`
	AvgTimePerItem     int64  `json:"avgTimePerItem"`
	IsProcessing       bool   `json:"isProcessing"`
	IsPaused           bool   `json:"isPaused"`
	CurrentItem        string `json:"currentItem,omitempty"`
	TotalCharacters    int    `json:"totalCharacters"`
	AudioBytes         int64  `json:"audioBytes"`
}

// ItemsRecord groups per-item records by outcome.
type ItemsRecord struct {
	Processed []ItemRecord `json:"processed"`
	Failed    []ItemRecord `json:"failed"`
}

// ItemRecord describes one work item's outcome.
type ItemRecord struct {
	ID             string `json:"id"`
	Speaker        string `json:"speaker"`
	VoiceID        string `json:"voiceId"`
	OriginalIndex  int    `json:"originalIndex"`
	ChunkIndex     int    `json:"chunkIndex"`
	TotalChunks    int    `json:"totalChunks"`
	CharacterCount int    `json:"characterCount"`
	Attempts       int    `json:"attempts"`
	Filename       string `json:"filename,omitempty"`
	AudioSize      int    `json:"audioSize,omitempty"`
	ProcessingTime int64  `json:"processingTime,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewItemRecord snapshots a work item.
func NewItemRecord(item *tts.WorkItem) ItemRecord {
	return ItemRecord{
		ID:             item.ID,
		Speaker:        item.Speaker,
		VoiceID:        item.VoiceID,
		OriginalIndex:  item.OriginalIndex,
		ChunkIndex:     item.ChunkIndex,
		TotalChunks:    item.TotalChunks,
		CharacterCount: item.CharacterCount,
		Attempts:       item.Attempts,
		Filename:       item.Filename,
		AudioSize:      item.AudioSize,
		ProcessingTime: item.ProcessingTime.Milliseconds(),
		Error:          item.Error,
	}
}

// normalized returns md with empty item lists encoded as [] rather than null.
func (md Metadata) normalized() Metadata {
	if md.Items.Processed == nil {
		md.Items.Processed = []ItemRecord{}
	}
	if md.Items.Failed == nil {
		md.Items.Failed = []ItemRecord{}
	}
	return md
}
