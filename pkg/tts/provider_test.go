package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("synthesis: %w", NewEngineError("edge-tts", 503, cause))

	assert.True(t, IsEngineError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 503, StatusCode(err))
	assert.Contains(t, err.Error(), "edge-tts unavailable (status 503)")

	assert.False(t, IsEngineError(context.DeadlineExceeded))
	assert.False(t, IsEngineError(nil))
	assert.Zero(t, StatusCode(errors.New("plain")))
	assert.Equal(t, "sapi unavailable: no voice", NewEngineError("sapi", 0, errors.New("no voice")).Error())
}

func TestLog_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tts.log")
	SetLogPath(path)
	t.Cleanup(func() {
		SetLogPath("logs/tts.log")
		SetEnabled(true)
	})

	SetEnabled(false)
	Log("TEST", "en-IN", "hello", 200, nil)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("log written while disabled")
	}

	SetEnabled(true)
	Log("TEST", "en-IN", "hello", 200, nil)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `TEST en-IN 200 "hello"`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestHistoryLine(t *testing.T) {
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

	got := historyLine(at, "SAPI", "", "Platform\n3", 0, errors.New("no voice"))
	want := "2026-05-04T09:30:00Z SAPI - error(no voice) \"Platform\\n3\"\n"
	if got != want {
		t.Errorf("historyLine() = %q, want %q", got, want)
	}
}
