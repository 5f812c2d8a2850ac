package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Default retry policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryPolicy controls how many times a request is attempted and how long to
// wait between attempts.
type RetryPolicy struct {
	MaxAttempts int           // Attempts per item, including the first
	BaseDelay   time.Duration // Delay before the first retry; doubles each retry
}

// DefaultRetryPolicy returns the default policy: 3 attempts, 1s base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Backoff returns the wait before the retry that follows the given failed
// attempt (1-based): BaseDelay * 2^(attempt-1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Result is the outcome of a successful synthesis.
type Result struct {
	Audio    []byte
	Attempts int
}

// Client wraps a Synthesizer with the retry policy. It knows nothing about
// queues, files or progress.
type Client struct {
	engine Synthesizer
	policy RetryPolicy
	logger *log.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a retrying client around engine.
func NewClient(engine Synthesizer, policy RetryPolicy, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		engine: engine,
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Policy returns the client's retry policy.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Synthesize runs one synthesis request, retrying with exponential backoff.
// An attempt that has started always runs to completion; ctx only stops
// further attempts. When all attempts fail the last error is returned as a
// *SynthesisError carrying the attempt count.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string, settings VoiceSettings) (Result, error) {
	if voiceID == "" {
		return Result{}, &SynthesisError{Err: ErrInvalidVoiceID}
	}
	if text == "" {
		return Result{}, &SynthesisError{Err: ErrEmptyText, VoiceID: voiceID}
	}

	maxAttempts := c.policy.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		audio, err := c.engine.Synthesize(context.WithoutCancel(ctx), voiceID, text, settings)
		if err == nil && len(audio) == 0 {
			err = ErrEmptyAudio
		}
		if err == nil {
			return Result{Audio: audio, Attempts: attempt}, nil
		}
		lastErr = err

		c.logger.Warn("Synthesis attempt failed",
			"voice", voiceID,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"err", err)

		if attempt == maxAttempts {
			break
		}
		if werr := c.sleep(ctx, c.policy.Backoff(attempt)); werr != nil {
			return Result{}, wrapFailure(fmt.Errorf("%w: retry aborted: %w", lastErr, werr), voiceID, attempt)
		}
	}

	return Result{}, wrapFailure(lastErr, voiceID, maxAttempts)
}

func wrapFailure(err error, voiceID string, attempts int) *SynthesisError {
	out := &SynthesisError{Err: err, VoiceID: voiceID, Attempts: attempts}
	if se, ok := err.(*SynthesisError); ok {
		out.Err = se.Err
		out.StatusCode = se.StatusCode
		if se.VoiceID != "" {
			out.VoiceID = se.VoiceID
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
