package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
)

// RequestLogger is the logger instance for HTTP requests.
var RequestLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	eventLogMu   sync.Mutex
	eventLogPath string
)

// Init rotates the previous run's files and installs the default logger
// (file, stdout and last-line capture) plus the file-only RequestLogger.
// An empty path disables that file. The returned func closes the files.
func Init(cfg *config.LogConfig, hCfg *config.HistoryConfig) (func(), error) {
	rotatePaths(cfg.Server.Path, cfg.Requests.Path, cfg.Events.Path)
	if hCfg != nil && hCfg.TTS.Enabled {
		rotatePaths(hCfg.TTS.Path)
	}
	SetEventLogPath(cfg.Events.Path)
	SetTrace(cfg.Trace)

	var files []io.Closer
	cleanup := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	serverLevel := parseLevel(cfg.Server.Level)
	serverFile, err := openLogFile(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	handlers := []slog.Handler{
		// console stays at INFO or above even when the file logs DEBUG
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(serverLevel, slog.LevelInfo)}),
		slog.NewTextHandler(GlobalLogCapture, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	if serverFile != nil {
		files = append(files, serverFile)
		handlers = append(handlers, slog.NewTextHandler(serverFile, &slog.HandlerOptions{
			Level:     serverLevel,
			AddSource: serverLevel == slog.LevelDebug,
		}))
	}
	slog.SetDefault(slog.New(&fanoutHandler{handlers: handlers}))

	requestFile, err := openLogFile(cfg.Requests.Path)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	if requestFile != nil {
		files = append(files, requestFile)
		RequestLogger = slog.New(slog.NewTextHandler(requestFile, &slog.HandlerOptions{Level: parseLevel(cfg.Requests.Level)}))
	}

	return cleanup, nil
}

// parseLevel accepts DEBUG, INFO, WARN and ERROR in any case. Anything else is INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// openLogFile opens path for appending. Returns nil for an empty path.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// fanoutHandler passes each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanoutHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	out := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		out[i] = fn(h)
	}
	return &fanoutHandler{handlers: out}
}

// rotatePaths keeps one previous generation of each file as <name>.old.
func rotatePaths(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		oldPath := p + ".old"
		_ = os.Remove(oldPath)
		_ = os.Rename(p, oldPath)
	}
}

// SetEventLogPath configures the path for the announcement event log file.
func SetEventLogPath(path string) {
	eventLogMu.Lock()
	defer eventLogMu.Unlock()
	eventLogPath = path
}

// LogEvent appends an announcement lifecycle event (created, announced, failed)
// to the event log and the event capture.
func LogEvent(kind string, rec *model.Record) {
	if rec == nil {
		return
	}
	line := formatEvent(time.Now(), kind, rec)
	_, _ = GlobalEventCapture.Write([]byte(line))

	eventLogMu.Lock()
	defer eventLogMu.Unlock()
	if eventLogPath == "" {
		return
	}

	f, err := openLogFile(eventLogPath)
	if err != nil {
		slog.Error("Failed to open event log", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
}

// formatEvent renders "[2006-01-02 15:04:05] [kind] rec_id (trigger/lang train) message".
func formatEvent(at time.Time, kind string, rec *model.Record) string {
	tags := string(rec.TriggerType) + "/" + string(rec.Language)
	if rec.TrainNumber != "" {
		tags += " " + rec.TrainNumber
	}
	return fmt.Sprintf("[%s] [%s] %s (%s) %s", at.Format("2006-01-02 15:04:05"), kind, rec.ID, tags, rec.Message)
}
