// Package mock provides an offline synthesizer for dry runs and testing.
package mock

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/voxcast/tts"
)

// ErrMockFailure is returned when a simulated failure is triggered.
var ErrMockFailure = errors.New("mock synthesis failure")

// bytesPerChar approximates a 128kbps MP3 at ~15 characters per second.
const bytesPerChar = 1066

// Engine implements tts.Synthesizer without any network access. It returns
// deterministic bytes shaped like an MP3 stream.
type Engine struct {
	mu sync.Mutex

	delay       time.Duration // Simulated request latency
	failureRate float64
	rng         *rand.Rand

	// Control for testing
	shouldFail   bool
	failureError error
	failNext     int

	callCount int
	calls     []Call
}

// Call records a single synthesis request.
type Call struct {
	VoiceID  string
	Text     string
	Settings tts.VoiceSettings
}

// New creates a mock engine from configuration.
func New(cfg tts.MockConfig) *Engine {
	return &Engine{
		delay:       cfg.Delay,
		failureRate: cfg.FailureRate,
		rng:         rand.New(rand.NewSource(1)),
	}
}

// Synthesize simulates one text-to-speech request.
func (e *Engine) Synthesize(ctx context.Context, voiceID, text string, settings tts.VoiceSettings) ([]byte, error) {
	e.mu.Lock()
	e.callCount++
	e.calls = append(e.calls, Call{VoiceID: voiceID, Text: text, Settings: settings})
	delay := e.delay
	err := e.nextFailure()
	e.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if err != nil {
		return nil, tts.NewSynthesisError(err, voiceID)
	}
	return Audio(text), nil
}

// nextFailure decides whether the current call fails. Callers hold e.mu.
func (e *Engine) nextFailure() error {
	switch {
	case e.shouldFail:
		return e.failureError
	case e.failNext > 0:
		e.failNext--
		return ErrMockFailure
	case e.failureRate > 0 && e.rng.Float64() < e.failureRate:
		return ErrMockFailure
	}
	return nil
}

// Audio returns the fake MP3 payload produced for text.
func Audio(text string) []byte {
	n := utf8.RuneCountInString(text) * bytesPerChar / 8
	if n < 64 {
		n = 64
	}
	data := make([]byte, n)
	// MPEG-1 Layer III frame sync, 128kbps, 44.1kHz.
	copy(data, []byte{0xFF, 0xFB, 0x90, 0x64})
	for i := 4; i < n; i++ {
		data[i] = byte(i)
	}
	return data
}

// Test control methods

// SetFailure configures the engine to fail every call with the given error.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = true
	e.failureError = err
}

// FailNext makes the next n calls fail.
func (e *Engine) FailNext(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = n
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = false
	e.failureError = nil
	e.failNext = 0
}

// GetCallCount returns the number of Synthesize calls.
func (e *Engine) GetCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Calls returns a copy of the recorded requests.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}
