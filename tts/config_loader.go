package tts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfigFromViper loads configuration from Viper, then applies secrets
// from the environment.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("output_dir") {
		cfg.OutputDir = viper.GetString("output_dir")
	}
	if viper.IsSet("engine") {
		cfg.Engine = viper.GetString("engine")
	}
	if viper.IsSet("max_chunk_chars") {
		cfg.MaxChunkChars = viper.GetInt("max_chunk_chars")
	}
	if viper.IsSet("item_delay") {
		cfg.ItemDelay = getDuration("item_delay", cfg.ItemDelay)
	}

	if viper.IsSet("retry.max_attempts") {
		cfg.Retry.MaxAttempts = viper.GetInt("retry.max_attempts")
	}
	if viper.IsSet("retry.base_delay") {
		cfg.Retry.BaseDelay = getDuration("retry.base_delay", cfg.Retry.BaseDelay)
	}

	cfg.ElevenLabs = loadElevenLabsConfig()
	cfg.Cache = loadCacheConfig(cfg.Cache)
	cfg.Mock = loadMockConfig(cfg.Mock)

	// Secrets never have to live in the config file.
	if err := env.Parse(&cfg.ElevenLabs); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadElevenLabsConfig() ElevenLabsConfig {
	cfg := DefaultElevenLabsConfig()

	if viper.IsSet("elevenlabs.api_key") {
		cfg.APIKey = viper.GetString("elevenlabs.api_key")
	}
	if viper.IsSet("elevenlabs.base_url") {
		cfg.BaseURL = viper.GetString("elevenlabs.base_url")
	}
	if viper.IsSet("elevenlabs.model") {
		cfg.Model = viper.GetString("elevenlabs.model")
	}
	if viper.IsSet("elevenlabs.output_format") {
		cfg.OutputFormat = viper.GetString("elevenlabs.output_format")
	}
	if viper.IsSet("elevenlabs.timeout") {
		cfg.Timeout = getDuration("elevenlabs.timeout", cfg.Timeout)
	}
	if viper.IsSet("elevenlabs.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("elevenlabs.requests_per_minute")
	}

	return cfg
}

func loadCacheConfig(cfg CacheConfig) CacheConfig {
	if viper.IsSet("cache.enabled") {
		cfg.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.max_size") {
		cfg.MaxSizeMB = viper.GetInt("cache.max_size")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}
	return cfg
}

func loadMockConfig(cfg MockConfig) MockConfig {
	if viper.IsSet("mock.delay") {
		cfg.Delay = getDuration("mock.delay", cfg.Delay)
	}
	if viper.IsSet("mock.failure_rate") {
		cfg.FailureRate = viper.GetFloat64("mock.failure_rate")
	}
	return cfg
}

// getDuration reads a duration key, keeping fallback when it does not parse.
func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(viper.GetString(key)); err == nil {
		return d
	}
	return fallback
}

// SetDefaults sets default values in Viper.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("output_dir", defaults.OutputDir)
	viper.SetDefault("engine", defaults.Engine)
	viper.SetDefault("max_chunk_chars", defaults.MaxChunkChars)
	viper.SetDefault("item_delay", defaults.ItemDelay.String())

	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.base_delay", defaults.Retry.BaseDelay.String())

	viper.SetDefault("elevenlabs.base_url", defaults.ElevenLabs.BaseURL)
	viper.SetDefault("elevenlabs.model", defaults.ElevenLabs.Model)
	viper.SetDefault("elevenlabs.output_format", defaults.ElevenLabs.OutputFormat)
	viper.SetDefault("elevenlabs.timeout", defaults.ElevenLabs.Timeout.String())
	viper.SetDefault("elevenlabs.requests_per_minute", defaults.ElevenLabs.RequestsPerMinute)

	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.dir", defaults.Cache.Dir)
	viper.SetDefault("cache.max_size", defaults.Cache.MaxSizeMB)
	viper.SetDefault("cache.compression_level", defaults.Cache.CompressionLevel)

	viper.SetDefault("mock.delay", defaults.Mock.Delay.String())
	viper.SetDefault("mock.failure_rate", defaults.Mock.FailureRate)
}
