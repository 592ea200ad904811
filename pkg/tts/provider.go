// Package tts defines the speech engines that render announcement text to audio files.
package tts

import (
	"context"
	"errors"
	"fmt"
)

// MinAudioSize is the smallest file accepted as synthesized audio; anything
// shorter is a truncated or empty response.
const MinAudioSize = 1024

// Provider renders text to an audio file.
type Provider interface {
	// Synthesize writes audio for text to outputPath plus the returned
	// extension ("mp3", "wav"). locale is the BCP-47 locale of the text
	// (en-IN, hi-IN, ta-IN); voice may be empty to let the engine choose.
	Synthesize(ctx context.Context, text, voice, locale, outputPath string) (string, error)

	Voices(ctx context.Context) ([]Voice, error)
}

// Voice is an installed or hosted voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	IsNeural bool   `json:"isNeural"`
}

// EngineError reports that the engine itself could not be reached or
// refused the request, as opposed to a problem with the text.
type EngineError struct {
	Engine string
	Status int // transport status, 0 when unknown
	Err    error
}

// NewEngineError wraps err as an EngineError.
func NewEngineError(engine string, status int, err error) *EngineError {
	return &EngineError{Engine: engine, Status: status, Err: err}
}

func (e *EngineError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s unavailable (status %d): %v", e.Engine, e.Status, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// IsEngineError reports whether err is or wraps an EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// StatusCode returns the engine status carried by err, or 0.
func StatusCode(err error) int {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Status
	}
	return 0
}
