package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// history records every synthesis attempt, one line each, so a misread
// announcement can be traced back to the exact text sent to the engine.
var history = struct {
	sync.Mutex
	path    string
	enabled bool
}{path: "logs/tts.log", enabled: true}

// SetLogPath configures the path for the TTS history log.
func SetLogPath(path string) {
	history.Lock()
	defer history.Unlock()
	history.path = path
}

// SetEnabled turns the TTS history log on or off.
func SetEnabled(on bool) {
	history.Lock()
	defer history.Unlock()
	history.enabled = on
}

// Log appends one synthesis attempt to the history log. Failures to write are ignored.
func Log(engine, locale, text string, status int, err error) {
	history.Lock()
	defer history.Unlock()
	if !history.enabled || history.path == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(history.path), 0o755); err != nil {
		return
	}
	f, openErr := os.OpenFile(history.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		return
	}
	defer f.Close()

	_, _ = f.WriteString(historyLine(time.Now(), engine, locale, text, status, err))
}

// historyLine formats: <time> <engine> <locale> <status> "<text>"
func historyLine(at time.Time, engine, locale, text string, status int, err error) string {
	result := strconv.Itoa(status)
	if err != nil {
		result = fmt.Sprintf("error(%v)", err)
	}
	if locale == "" {
		locale = "-"
	}
	return fmt.Sprintf("%s %s %s %s %q\n", at.Format(time.RFC3339), engine, locale, result, text)
}
