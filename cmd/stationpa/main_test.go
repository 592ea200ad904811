package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stationpa/pkg/logging"
)

func TestRun(t *testing.T) {
	// relative log and data paths land in the temp dir
	t.Chdir(t.TempDir())

	tempConfig := `
server:
    address: localhost:0  # 0 lets OS choose free port
    heartbeat: 1s
store:
    driver: sqlite
    path: "data/test.db"
log:
    server:
        path: "logs/test_server.log"
        level: "debug"
    requests:
        path: "logs/test_requests.log"
        level: "info"
tts:
    engine: "none"
player:
    embedded: false
`
	path := filepath.Join("configs", "test.yaml")
	if err := os.MkdirAll("configs", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(tempConfig), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	// Create a context that cancels quickly to verify startup sequence
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
	if _, err := os.Stat("data/test.db"); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	orig := logging.RequestLogger
	logging.RequestLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	defer func() { logging.RequestLogger = orig }()

	h := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if w.Code != http.StatusTeapot {
		t.Errorf("code = %d", w.Code)
	}
}
