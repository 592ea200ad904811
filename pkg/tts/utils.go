package tts

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	placeholderRegex = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	spaceRegex       = regexp.MustCompile(`\s+`)
)

// SpeakableText prepares an announcement message for synthesis.
// Unresolved {placeholders} are read as their bare names.
func SpeakableText(msg string) string {
	msg = placeholderRegex.ReplaceAllString(msg, "$1")
	return strings.TrimSpace(spaceRegex.ReplaceAllString(msg, " "))
}

// VerifyAudioFile checks that a synthesized file exists and is large enough to hold audio.
func VerifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file missing: %w", err)
	}
	if info.Size() < MinAudioSize {
		return fmt.Errorf("audio file too small (%d bytes): %s", info.Size(), path)
	}
	return nil
}
