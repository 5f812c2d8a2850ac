package cache

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/voxcast/tts"
)

// Synthesizer serves repeated synthesis requests from a DiskCache and
// forwards everything else to the wrapped engine.
type Synthesizer struct {
	next   tts.Synthesizer
	cache  *DiskCache
	logger *log.Logger
}

// NewSynthesizer wraps next with cache.
func NewSynthesizer(next tts.Synthesizer, cache *DiskCache, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Synthesizer{next: next, cache: cache, logger: logger}
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, voiceID, text string, settings tts.VoiceSettings) ([]byte, error) {
	key := Key(voiceID, text, settings)
	if audio, ok := s.cache.Get(key); ok {
		s.logger.Debug("Cache hit", "voice", voiceID, "size", humanize.Bytes(uint64(len(audio))))
		return audio, nil
	}

	audio, err := s.next.Synthesize(ctx, voiceID, text, settings)
	if err != nil {
		return nil, err
	}

	// A failed cache write never fails the request.
	if err := s.cache.Put(key, audio); err != nil {
		s.logger.Warn("Failed to cache audio", "voice", voiceID, "err", err)
	}
	return audio, nil
}

// Close closes the underlying cache.
func (s *Synthesizer) Close() error {
	return s.cache.Close()
}
