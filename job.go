package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/voxcast/internal/artifact"
	"github.com/dgnsrekt/voxcast/internal/batch"
	"github.com/dgnsrekt/voxcast/internal/script"
	"github.com/dgnsrekt/voxcast/tts"
	"github.com/dgnsrekt/voxcast/tts/engines"
)

// loadConfig builds the configuration from viper, applying the engine and
// output flags a command bound.
func loadConfig() (tts.Config, error) {
	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return cfg, err
	}
	log.Debug("Configuration loaded", "engine", cfg.Engine, "output", cfg.OutputDir, "config", viper.ConfigFileUsed())
	return cfg, nil
}

// newEngine creates a batch engine writing below cfg.OutputDir.
func newEngine(cfg tts.Config, synth tts.Synthesizer, logger *log.Logger) *batch.Engine {
	client := tts.NewClient(synth, cfg.Retry, logger)
	writer := artifact.NewWriter(cfg.OutputDir, logger)
	return batch.New(client, writer,
		batch.WithItemDelay(cfg.ItemDelay),
		batch.WithMaxChunkChars(cfg.MaxChunkChars),
		batch.WithLogger(logger))
}

// openSynthesizer creates the configured synthesis engine.
func openSynthesizer(cfg tts.Config) (engines.Engine, error) {
	return engines.New(cfg, log.Default())
}

// loadScript reads a script and resolves its speaker mapping: inline voices
// first, then the mapping file on top.
func loadScript(path, mappingFile string) (script.Script, tts.SpeakerMapping, error) {
	sc, err := script.Load(path)
	if err != nil {
		return sc, nil, err
	}

	mapping := sc.Voices
	if mappingFile != "" {
		m, err := script.LoadMapping(mappingFile)
		if err != nil {
			return sc, nil, err
		}
		mapping = script.Merge(mapping, m)
	}

	if missing := script.Unmapped(sc, mapping); len(missing) > 0 {
		log.Warn("Speakers without a voice are skipped", "speakers", missing)
	}
	return sc, mapping, nil
}
