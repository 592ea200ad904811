package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stationpa/pkg/db"
	"stationpa/pkg/model"
	"stationpa/pkg/store"
)

func TestRun_PrunesTerminalRecords(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "maint_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	s := store.NewSQLiteStore(d)
	ctx := context.Background()
	old := time.Now().Add(-60 * 24 * time.Hour)

	seed := []struct {
		id      string
		created time.Time
		status  model.RecordStatus
	}{
		{"rec_old_done", old, model.RecordAnnounced},
		{"rec_old_failed", old, model.RecordFailed},
		{"rec_old_pending", old, model.RecordPending},
		{"rec_new_done", time.Now(), model.RecordAnnounced},
	}
	for _, r := range seed {
		rec := &model.Record{
			ID: r.id, TemplateID: "tpl_delay_1", TriggerType: model.TriggerTrainDelay,
			Message: "m", Language: model.LanguageEnglish, Status: model.RecordPending, CreatedAt: r.created,
		}
		if err := s.CreateRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
		if r.status != model.RecordPending {
			status := r.status
			if _, err := s.UpdateRecord(ctx, r.id, model.RecordPatch{Status: &status}); err != nil {
				t.Fatal(err)
			}
		}
	}

	Run(ctx, d, 30*24*time.Hour, "", 0)

	for _, id := range []string{"rec_old_done", "rec_old_failed"} {
		if _, err := s.GetRecord(ctx, id); err == nil {
			t.Errorf("%s should have been pruned", id)
		}
	}
	for _, id := range []string{"rec_old_pending", "rec_new_done"} {
		if _, err := s.GetRecord(ctx, id); err != nil {
			t.Errorf("%s should be kept: %v", id, err)
		}
	}
}

func TestRun_PrunesStaleAudio(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "abc-1.mp3")
	fresh := filepath.Join(dir, "def-2.mp3")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	Run(context.Background(), nil, 0, dir, 30*time.Minute)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file still present: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
}

func TestRun_MissingAudioDir(t *testing.T) {
	// must not panic or fail
	Run(context.Background(), nil, time.Hour, filepath.Join(t.TempDir(), "missing"), time.Minute)
}
