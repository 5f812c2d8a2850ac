package tts

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all voxcast configuration options.
type Config struct {
	// Output settings
	OutputDir     string        `yaml:"output_dir"`
	Engine        string        `yaml:"engine"`
	MaxChunkChars int           `yaml:"max_chunk_chars"`
	ItemDelay     time.Duration `yaml:"item_delay"`

	Retry      RetryPolicy      `yaml:"retry"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Cache      CacheConfig      `yaml:"cache"`
	Mock       MockConfig       `yaml:"mock"`
}

// ElevenLabsConfig contains ElevenLabs engine settings.
type ElevenLabsConfig struct {
	APIKey            string        `yaml:"api_key" env:"ELEVENLABS_API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"ELEVENLABS_BASE_URL"`
	Model             string        `yaml:"model"`
	OutputFormat      string        `yaml:"output_format"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// CacheConfig contains synthesis cache settings.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Dir              string `yaml:"dir"`
	MaxSizeMB        int    `yaml:"max_size"`
	CompressionLevel int    `yaml:"compression_level"`
}

// MockConfig contains mock engine settings for dry runs.
type MockConfig struct {
	Delay       time.Duration `yaml:"delay"`
	FailureRate float64       `yaml:"failure_rate"`
}

// Default configuration values.
const (
	DefaultMaxChunkChars = 1000
	DefaultItemDelay     = 100 * time.Millisecond
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:     "~/voxcast",
		Engine:        "elevenlabs",
		MaxChunkChars: DefaultMaxChunkChars,
		ItemDelay:     DefaultItemDelay,
		Retry:         DefaultRetryPolicy(),
		ElevenLabs:    DefaultElevenLabsConfig(),
		Cache: CacheConfig{
			Enabled:          true,
			MaxSizeMB:        500,
			CompressionLevel: 3,
		},
		Mock: MockConfig{
			Delay: 50 * time.Millisecond,
		},
	}
}

// DefaultElevenLabsConfig returns default ElevenLabs configuration.
func DefaultElevenLabsConfig() ElevenLabsConfig {
	return ElevenLabsConfig{
		BaseURL:           "https://api.elevenlabs.io",
		Model:             "eleven_multilingual_v2",
		OutputFormat:      "mp3_44100_128",
		Timeout:           60 * time.Second,
		RequestsPerMinute: 120,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validEngines := []string{"elevenlabs", "mock"}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = strings.ToLower(c.Engine)
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("%w '%s': must be one of %v", ErrUnknownEngine, c.Engine, validEngines)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir cannot be empty", ErrInvalidConfig)
	}

	if c.MaxChunkChars < 50 || c.MaxChunkChars > 10000 {
		return fmt.Errorf("%w: max_chunk_chars must be between 50 and 10000, got %d", ErrInvalidConfig, c.MaxChunkChars)
	}

	if c.ItemDelay < 0 {
		return fmt.Errorf("%w: item_delay cannot be negative, got %v", ErrInvalidConfig, c.ItemDelay)
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return fmt.Errorf("%w: retry.max_attempts must be between 1 and 10, got %d", ErrInvalidConfig, c.Retry.MaxAttempts)
	}

	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("%w: retry.base_delay cannot be negative, got %v", ErrInvalidConfig, c.Retry.BaseDelay)
	}

	if c.Cache.Enabled {
		if c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 100000 {
			return fmt.Errorf("%w: cache.max_size must be between 1 and 100000 MB, got %d", ErrInvalidConfig, c.Cache.MaxSizeMB)
		}
		if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
			return fmt.Errorf("%w: cache.compression_level must be between 0 and 22, got %d", ErrInvalidConfig, c.Cache.CompressionLevel)
		}
	}

	switch c.Engine {
	case "elevenlabs":
		if err := c.ElevenLabs.Validate(); err != nil {
			return fmt.Errorf("elevenlabs config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	return nil
}

// Validate checks if the ElevenLabs configuration is valid. A missing API key
// is reported when the engine is built, so `voxcast config` works without one.
func (c *ElevenLabsConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url cannot be empty", ErrInvalidConfig)
	}

	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}

	if c.RequestsPerMinute < 1 || c.RequestsPerMinute > 10000 {
		return fmt.Errorf("%w: requests_per_minute must be between 1 and 10000, got %d", ErrInvalidConfig, c.RequestsPerMinute)
	}

	return nil
}

// Validate checks if the Mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("%w: failure_rate must be between 0.0 and 1.0, got %f", ErrInvalidConfig, c.FailureRate)
	}
	return nil
}
