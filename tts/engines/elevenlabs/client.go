// Package elevenlabs implements tts.Synthesizer against the ElevenLabs
// text-to-speech HTTP API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgnsrekt/voxcast/tts"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// Client is an ElevenLabs API client. One request is made per Synthesize
// call; retries are left to tts.Client.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	httpClient   *http.Client

	// Requests are spaced out to stay under the account's rate limit.
	rateLimiter *rate.Limiter
}

// Voice is an account voice as reported by the API.
type Voice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	LanguageCode  string         `json:"language_code,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// New creates a client from configuration.
func New(cfg tts.ElevenLabsConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, tts.ErrMissingAPIKey
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = tts.DefaultElevenLabsConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}

	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		outputFormat: cfg.OutputFormat,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		rateLimiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// Synthesize converts text to encoded audio with the given voice.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string, settings tts.VoiceSettings) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, tts.NewSynthesisError(fmt.Errorf("rate limiter: %w", err), voiceID)
	}

	model := settings.Model
	if model == "" {
		model = c.model
	}
	format := settings.OutputFormat
	if format == "" {
		format = c.outputFormat
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:         text,
		ModelID:      model,
		LanguageCode: settings.Language,
		VoiceSettings: &voiceSettings{
			Stability:       settings.Stability,
			SimilarityBoost: settings.SimilarityBoost,
			Style:           settings.Style,
			UseSpeakerBoost: settings.SpeakerBoost,
		},
	})
	if err != nil {
		return nil, tts.NewSynthesisError(fmt.Errorf("encode request: %w", err), voiceID)
	}

	endpoint := c.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	if format != "" {
		endpoint += "?" + url.Values{"output_format": {format}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, tts.NewSynthesisError(fmt.Errorf("build request: %w", err), voiceID)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, tts.NewSynthesisError(fmt.Errorf("%w: %w", tts.ErrGenerationFailed, err), voiceID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, tts.NewSynthesisError(apiError(resp), voiceID).WithStatus(resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.NewSynthesisError(fmt.Errorf("read audio: %w", err), voiceID)
	}
	if len(audio) == 0 {
		return nil, tts.NewSynthesisError(tts.ErrEmptyAudio, voiceID)
	}

	return audio, nil
}

// Voices lists the voices available to the account.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list voices: status %d: %w", resp.StatusCode, apiError(resp))
	}

	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return payload.Voices, nil
}

// apiError extracts a readable message from an error response.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Detail.Message != "" {
		return fmt.Errorf("%w: %s: %s", tts.ErrGenerationFailed, payload.Detail.Status, payload.Detail.Message)
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%w: %s", tts.ErrGenerationFailed, msg)
}
