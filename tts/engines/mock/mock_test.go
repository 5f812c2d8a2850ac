package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/voxcast/tts"
)

func TestSynthesize(t *testing.T) {
	engine := New(tts.MockConfig{})

	audio, err := engine.Synthesize(context.Background(), "voice-1", "Hello, world!", tts.VoiceSettings{Stability: 0.5})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if len(audio) == 0 {
		t.Fatal("Expected non-empty audio data")
	}
	if audio[0] != 0xFF || audio[1] != 0xFB {
		t.Errorf("Expected MP3 frame sync, got % x", audio[:2])
	}

	calls := engine.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 recorded call, got %d", len(calls))
	}
	if calls[0].VoiceID != "voice-1" || calls[0].Settings.Stability != 0.5 {
		t.Errorf("Unexpected recorded call: %+v", calls[0])
	}
}

func TestAudioDeterministic(t *testing.T) {
	a, b := Audio("same text"), Audio("same text")
	if string(a) != string(b) {
		t.Error("Expected identical audio for identical text")
	}
	if len(Audio("a much longer line of dialogue than before")) <= len(Audio("hi")) {
		t.Error("Expected longer text to produce more audio")
	}
}

func TestSetFailure(t *testing.T) {
	engine := New(tts.MockConfig{})
	testErr := errors.New("test failure")
	engine.SetFailure(testErr)

	_, err := engine.Synthesize(context.Background(), "v", "text", tts.VoiceSettings{})
	if !errors.Is(err, testErr) {
		t.Fatalf("Expected test failure, got %v", err)
	}

	var se *tts.SynthesisError
	if !errors.As(err, &se) || se.VoiceID != "v" {
		t.Errorf("Expected SynthesisError for voice v, got %v", err)
	}

	engine.ClearFailure()
	if _, err := engine.Synthesize(context.Background(), "v", "text", tts.VoiceSettings{}); err != nil {
		t.Errorf("Expected success after ClearFailure, got %v", err)
	}
}

func TestFailNext(t *testing.T) {
	engine := New(tts.MockConfig{})
	engine.FailNext(2)

	for i := 0; i < 2; i++ {
		if _, err := engine.Synthesize(context.Background(), "v", "text", tts.VoiceSettings{}); !errors.Is(err, ErrMockFailure) {
			t.Errorf("call %d: expected ErrMockFailure, got %v", i+1, err)
		}
	}
	if _, err := engine.Synthesize(context.Background(), "v", "text", tts.VoiceSettings{}); err != nil {
		t.Errorf("call 3: expected success, got %v", err)
	}

	if engine.GetCallCount() != 3 {
		t.Errorf("Expected 3 calls, got %d", engine.GetCallCount())
	}
}

func TestFailureRate(t *testing.T) {
	engine := New(tts.MockConfig{FailureRate: 1.0})
	if _, err := engine.Synthesize(context.Background(), "v", "text", tts.VoiceSettings{}); !errors.Is(err, ErrMockFailure) {
		t.Errorf("Expected failure with rate 1.0, got %v", err)
	}
}

func TestDelayHonorsContext(t *testing.T) {
	engine := New(tts.MockConfig{Delay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := engine.Synthesize(ctx, "v", "text", tts.VoiceSettings{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Synthesize did not return promptly after the context expired")
	}
}
