// Package db opens the SQLite database behind the sqlite store and keeps its schema current.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens (creating if needed) the database at path and migrates it.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	// pragmas in the DSN apply to every connection the pool opens
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// one writer; concurrent writers only trade places on SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	d := &DB{conn}
	if err := d.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return d, nil
}

// SchemaVersion reports how many migrations have been applied.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := d.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// migrations are applied in order, each exactly once; the index+1 is
// recorded in user_version. Append only.
//
// Timestamps are unix nanoseconds so ordering by created_at is exact; seq
// columns keep insertion order for listings and tie breaks.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS templates (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		text_en TEXT NOT NULL,
		text_hi TEXT,
		text_regional TEXT,
		enabled BOOLEAN DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS trains (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		train_number TEXT,
		name TEXT,
		source TEXT,
		destination TEXT,
		platform TEXT,
		eta TEXT,
		etd TEXT,
		status TEXT,
		delay_minutes INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		template_id TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		train_number TEXT,
		message TEXT NOT NULL,
		language TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		announced_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records (created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_records_status ON records (status, seq);`,

	// key/value settings such as the console player volume
	`CREATE TABLE IF NOT EXISTS persistent_state (
		key TEXT PRIMARY KEY,
		value TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,

	// the player reports where the played audio lives
	`ALTER TABLE records ADD COLUMN audio_url TEXT;`,
}

func (d *DB) migrate(ctx context.Context) error {
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema v%d is newer than this build (v%d)", current, len(migrations))
	}

	for i := current; i < len(migrations); i++ {
		if err := d.apply(ctx, i+1, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		slog.Debug("DB: migrated", "version", i+1)
	}
	return nil
}

func (d *DB) apply(ctx context.Context, version int, stmt string) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	// PRAGMA does not take bind parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}
