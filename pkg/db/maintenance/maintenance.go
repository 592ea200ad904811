// Package maintenance runs the startup housekeeping for durable state.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stationpa/pkg/db"
)

// Run executes all maintenance tasks: record pruning and audio cleanup.
// Failures are logged and never stop startup. d may be nil for the memory store.
func Run(ctx context.Context, d *db.DB, retention time.Duration, audioDir string, audioTTL time.Duration) {
	slog.Info("Starting maintenance...")

	if d != nil && retention > 0 {
		n, err := pruneRecords(ctx, d, time.Now().Add(-retention))
		if err != nil {
			slog.Error("Record pruning failed", "error", err)
		} else {
			slog.Info("Record pruning completed", "removed", n)
		}
	}

	if audioDir != "" && audioTTL > 0 {
		n, err := pruneAudio(audioDir, time.Now().Add(-audioTTL))
		if err != nil {
			slog.Error("Audio cleanup failed", "error", err)
		} else {
			slog.Info("Audio cleanup completed", "removed", n)
		}
	}
}

// pruneRecords deletes announced and failed records created before cutoff.
// Pending records are always kept.
func pruneRecords(ctx context.Context, d *db.DB, cutoff time.Time) (int64, error) {
	res, err := d.ExecContext(ctx,
		`DELETE FROM records WHERE status IN ('announced', 'failed') AND created_at < ?`,
		cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return res.RowsAffected()
}

// pruneAudio removes synthesized files left behind by a previous run.
func pruneAudio(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("Failed to remove stale audio", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
