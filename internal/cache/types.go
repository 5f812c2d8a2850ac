package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgnsrekt/voxcast/tts"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned when the cache is used after Close
	ErrCacheClosed = errors.New("cache is closed")
)

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size on disk in bytes
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
	LastEvict  time.Time
}

// Key returns the cache key for a synthesis request. Any change to the
// voice, its settings or the text yields a different key.
func Key(voiceID, text string, settings tts.VoiceSettings) string {
	data := fmt.Sprintf("%s|%.3f|%.3f|%.3f|%t|%s|%s|%s|%s",
		voiceID,
		settings.Stability,
		settings.SimilarityBoost,
		settings.Style,
		settings.SpeakerBoost,
		settings.Model,
		settings.Language,
		settings.OutputFormat,
		text,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
