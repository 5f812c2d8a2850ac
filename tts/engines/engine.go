// Package engines builds the configured synthesis engine.
package engines

import (
	"fmt"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/voxcast/internal/cache"
	"github.com/dgnsrekt/voxcast/tts"
	"github.com/dgnsrekt/voxcast/tts/engines/elevenlabs"
	"github.com/dgnsrekt/voxcast/tts/engines/mock"
	"github.com/dgnsrekt/voxcast/utils"
)

// Engine is a synthesizer that may hold resources until closed.
type Engine interface {
	tts.Synthesizer
	Close() error
}

type nopCloser struct{ tts.Synthesizer }

func (nopCloser) Close() error { return nil }

// New creates the engine named by cfg.Engine, wrapped with the disk cache
// when caching is enabled.
func New(cfg tts.Config, logger *log.Logger) (Engine, error) {
	if logger == nil {
		logger = log.Default()
	}

	var base tts.Synthesizer
	switch cfg.Engine {
	case "elevenlabs":
		client, err := elevenlabs.New(cfg.ElevenLabs)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs engine: %w", err)
		}
		base = client
	case "mock":
		base = mock.New(cfg.Mock)
	default:
		return nil, fmt.Errorf("%w: %q", tts.ErrUnknownEngine, cfg.Engine)
	}

	if !cfg.Cache.Enabled {
		return nopCloser{base}, nil
	}

	dir, err := CacheDir(cfg.Cache)
	if err != nil {
		return nil, err
	}
	dc, err := cache.NewDiskCache(dir, int64(cfg.Cache.MaxSizeMB)*1024*1024, cfg.Cache.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("opening synthesis cache: %w", err)
	}
	logger.Debug("Synthesis cache enabled", "dir", dir, "maxSizeMB", cfg.Cache.MaxSizeMB)

	return cache.NewSynthesizer(base, dc, logger), nil
}

// CacheDir resolves the cache directory, defaulting to the user cache dir.
func CacheDir(cfg tts.CacheConfig) (string, error) {
	if cfg.Dir != "" {
		return utils.ExpandPath(cfg.Dir), nil
	}
	dir, err := gap.NewScope(gap.User, "voxcast").CacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache dir: %w", err)
	}
	return dir, nil
}
