package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# directory episode folders are written to
output_dir: "~/voxcast"
# synthesis engine: elevenlabs or mock
engine: "elevenlabs"
# longest text sent in one request, in characters
max_chunk_chars: 1000
# pause between requests
item_delay: "100ms"

retry:
  # attempts per item, including the first
  max_attempts: 3
  # wait before the second attempt; doubles after each failure
  base_delay: "1s"

elevenlabs:
  # prefer the ELEVENLABS_API_KEY environment variable
  # api_key: ""
  base_url: "https://api.elevenlabs.io"
  model: "eleven_multilingual_v2"
  output_format: "mp3_44100_128"
  timeout: "60s"
  requests_per_minute: 120

# cache of synthesized audio, keyed by voice, settings and text
cache:
  enabled: true
  # dir: "~/.cache/voxcast"
  max_size: 500
  compression_level: 3

# offline engine for dry runs
mock:
  delay: "50ms"
  failure_rate: 0.0
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the voxcast config file",
	Long:    paragraph(fmt.Sprintf("\n%s the config file in $EDITOR, writing the defaults first when it does not exist yet.", keyword("Edit"))),
	Example: paragraph("voxcast config\nvoxcast config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("voxcast", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Config file:", configFile)
		return nil
	},
}

// ensureConfigFile writes the default config to configFile unless a file
// is already there.
func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.ConfigFileUsed()
	}
	switch filepath.Ext(configFile) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("%q is not a supported configuration file: use .yaml or .yml", configFile)
	}

	_, err := os.Stat(configFile)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}
