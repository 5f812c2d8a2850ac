package tts

import (
	"errors"
	"fmt"
)

// Common errors for the synthesis pipeline.
var (
	// Configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingAPIKey  = errors.New("speech API key is not configured")
	ErrUnknownEngine  = errors.New("unknown synthesis engine")
	ErrNoWorkItems    = errors.New("no work items: no dialogue has a mapped speaker")
	ErrEmptyText      = errors.New("empty text provided")
	ErrInvalidVoiceID = errors.New("voice id is required")

	// Job errors
	ErrJobActive         = errors.New("a job is already running")
	ErrNotInitialized    = errors.New("job not initialized")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNothingToRetry    = errors.New("no failed items to retry")

	// Synthesis errors
	ErrGenerationFailed = errors.New("audio generation failed")
	ErrEmptyAudio       = errors.New("engine returned no audio")
)

// SynthesisError describes a failed text-to-speech request.
type SynthesisError struct {
	Err        error  // The underlying error
	VoiceID    string // Voice the request was made with
	Attempts   int    // Attempts made before giving up
	StatusCode int    // HTTP status, when the engine is remote
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	msg := "synthesis failed"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("status %d: %s", e.StatusCode, msg)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// NewSynthesisError creates a synthesis error for a voice.
func NewSynthesisError(err error, voiceID string) *SynthesisError {
	return &SynthesisError{Err: err, VoiceID: voiceID}
}

// WithStatus sets the HTTP status code.
func (e *SynthesisError) WithStatus(code int) *SynthesisError {
	e.StatusCode = code
	return e
}

// AttemptsOf reports how many attempts an error carries, or 0.
func AttemptsOf(err error) int {
	var se *SynthesisError
	if errors.As(err, &se) {
		return se.Attempts
	}
	return 0
}
