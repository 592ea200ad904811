package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stationpa/pkg/db"
	"stationpa/pkg/model"
)

// SQLiteStore implements Store on top of pkg/db.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// --- Templates ---

const templateColumns = `id, name, trigger_type, text_en, text_hi, text_regional, enabled, created_at, updated_at`

func scanTemplate(row rowScanner) (*model.Template, error) {
	var t model.Template
	var hi, regional sql.NullString
	var created, updated int64
	if err := row.Scan(&t.ID, &t.Name, &t.TriggerType, &t.TextEnglish, &hi, &regional, &t.Enabled, &created, &updated); err != nil {
		return nil, err
	}
	t.TextHindi = hi.String
	t.TextRegional = regional.String
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return &t, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	return s.queryTemplates(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY seq`)
}

func (s *SQLiteStore) ListEnabledTemplates(ctx context.Context) ([]model.Template, error) {
	return s.queryTemplates(ctx, `SELECT `+templateColumns+` FROM templates WHERE enabled = 1 ORDER BY seq`)
}

func (s *SQLiteStore) queryTemplates(ctx context.Context, query string, args ...any) ([]model.Template, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM templates WHERE id = ?`, t.ID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("template %s: %w", t.ID, ErrDuplicate)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.TriggerType), t.TextEnglish, t.TextHindi, t.TextRegional, t.Enabled,
		toNanos(t.CreatedAt), toNanos(t.UpdatedAt))
	return err
}

// --- Trains ---

const trainColumns = `id, train_number, name, source, destination, platform, eta, etd, status, delay_minutes`

func scanTrain(row rowScanner) (*model.Train, error) {
	var t model.Train
	if err := row.Scan(&t.ID, &t.TrainNumber, &t.Name, &t.Source, &t.Destination,
		&t.Platform, &t.ETA, &t.ETD, &t.Status, &t.DelayMinutes); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteStore) ListTrains(ctx context.Context) ([]model.Train, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trainColumns+` FROM trains ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Train
	for rows.Next() {
		t, err := scanTrain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTrain(ctx context.Context, id string) (*model.Train, error) {
	t, err := scanTrain(s.db.QueryRowContext(ctx, `SELECT `+trainColumns+` FROM trains WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("train %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) SaveTrain(ctx context.Context, t *model.Train) error {
	// Upsert keeps seq, and with it the listing position
	query := `INSERT INTO trains (` + trainColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			train_number = excluded.train_number,
			name = excluded.name,
			source = excluded.source,
			destination = excluded.destination,
			platform = excluded.platform,
			eta = excluded.eta,
			etd = excluded.etd,
			status = excluded.status,
			delay_minutes = excluded.delay_minutes`
	_, err := s.db.ExecContext(ctx, query, t.ID, t.TrainNumber, t.Name, t.Source, t.Destination,
		t.Platform, t.ETA, t.ETD, string(t.Status), t.DelayMinutes)
	return err
}

// --- Records ---

const recordColumns = `id, template_id, trigger_type, train_number, message, language, status, audio_url, created_at, announced_at`

func scanRecord(row rowScanner) (*model.Record, error) {
	var r model.Record
	var trainNumber, audioURL sql.NullString
	var created int64
	var announced sql.NullInt64
	if err := row.Scan(&r.ID, &r.TemplateID, &r.TriggerType, &trainNumber, &r.Message,
		&r.Language, &r.Status, &audioURL, &created, &announced); err != nil {
		return nil, err
	}
	r.TrainNumber = trainNumber.String
	r.AudioURL = audioURL.String
	r.CreatedAt = fromNanos(created)
	if announced.Valid {
		at := fromNanos(announced.Int64)
		r.AnnouncedAt = &at
	}
	return &r, nil
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, r *model.Record) error {
	var announced sql.NullInt64
	if r.AnnouncedAt != nil {
		announced = sql.NullInt64{Int64: toNanos(*r.AnnouncedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TemplateID, string(r.TriggerType), r.TrainNumber, r.Message, string(r.Language),
		string(r.Status), r.AudioURL, toNanos(r.CreatedAt), announced)
	if err != nil {
		var n int
		if qerr := s.db.QueryRowContext(ctx, `SELECT count(*) FROM records WHERE id = ?`, r.ID).Scan(&n); qerr == nil && n > 0 {
			return fmt.Errorf("record %s: %w", r.ID, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	updated := patch.Apply(*cur)
	var announced sql.NullInt64
	if updated.AnnouncedAt != nil {
		announced = sql.NullInt64{Int64: toNanos(*updated.AnnouncedAt), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET status = ?, audio_url = ?, announced_at = ? WHERE id = ?`,
		string(updated.Status), updated.AudioURL, announced, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *SQLiteStore) ListRecentRecords(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY created_at DESC, seq DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) ListPendingRecords(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE status = ? ORDER BY seq LIMIT ?`,
		string(model.RecordPending), limit)
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}
