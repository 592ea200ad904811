package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")
	eventLog := filepath.Join(tempDir, "events.log")

	// A previous run leaves a log behind; Init must rotate it.
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
		Events:   config.LogSettings{Path: eventLog, Level: "INFO"},
	}

	prev := slog.Default()
	cleanup, err := Init(cfg, &config.HistoryConfig{})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		cleanup()
		slog.SetDefault(prev)
		SetEventLogPath("")
	}()

	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	if _, err := os.Stat(serverLog + ".old"); err != nil {
		t.Error("previous server log was not rotated")
	}
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}

	slog.Info("Captured line", "component", "test")
	if got := GlobalLogCapture.GetLastLine(); !strings.Contains(got, "Captured line") {
		t.Errorf("log capture missed the last line: %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLevel(tt.in); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInit_EmptyPathsDisableFiles(t *testing.T) {
	prev := slog.Default()
	cleanup, err := Init(&config.LogConfig{}, nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() {
		cleanup()
		slog.SetDefault(prev)
	}()

	// must not panic without a request log file
	RequestLogger.Info("Request Processed", "path", "/health")
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := &model.Record{
		ID: "rec_9", TriggerType: model.TriggerPlatformChange, Language: model.LanguageHindi,
		TrainNumber: "12951", Message: "Platform 4",
	}
	want := "[2026-03-01 09:30:00] [created] rec_9 (platform_change/hi 12951) Platform 4"
	if got := formatEvent(at, "created", rec); got != want {
		t.Errorf("formatEvent() = %q, want %q", got, want)
	}
}

func TestLogEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	SetEventLogPath(path)
	defer SetEventLogPath("")

	LogEvent("announced", &model.Record{
		ID:          "rec_1",
		TriggerType: model.TriggerTrainDelay,
		Language:    model.LanguageEnglish,
		Message:     "Train number 12346 is delayed",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("event log not written: %v", err)
	}
	line := string(data)
	for _, want := range []string{"[announced]", "rec_1", "train_delay/en", "12346"} {
		if !strings.Contains(line, want) {
			t.Errorf("event line %q missing %q", line, want)
		}
	}
	if !strings.Contains(GlobalEventCapture.GetLastLine(), "rec_1") {
		t.Error("event capture not updated")
	}
}

func TestLogCaptureWriter_Recent(t *testing.T) {
	w := &LogCaptureWriter{}
	if got := w.GetLastLine(); got != "" {
		t.Errorf("empty capture returned %q", got)
	}

	for i := range captureSize + 5 {
		_, _ = w.Write([]byte("line " + strconv.Itoa(i) + "\n"))
	}

	if got := w.GetLastLine(); got != "line 54" {
		t.Errorf("GetLastLine() = %q", got)
	}
	recent := w.Recent(3)
	if strings.Join(recent, ",") != "line 52,line 53,line 54" {
		t.Errorf("Recent(3) = %v", recent)
	}
	if all := w.Recent(0); len(all) != captureSize || all[0] != "line 5" {
		t.Errorf("Recent(0) kept %d lines starting at %q", len(all), all[0])
	}
}

func TestTrace(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { SetTrace(false) })

	Trace(logger, "Broadcast: delivered", "subscriber", 1)
	if buf.Len() != 0 {
		t.Fatalf("trace logged while disabled: %s", buf.String())
	}

	SetTrace(true)
	Trace(logger, "Broadcast: delivered", "subscriber", 1)
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "subscriber=1") {
		t.Errorf("unexpected trace output: %q", buf.String())
	}
}
