package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stationpa/pkg/store"
)

type fakeAvail struct{ err error }

func (f fakeAvail) Available() error { return f.err }

type fakePinger struct{ err error }

func (f fakePinger) Health(ctx context.Context) error { return f.err }

func TestStoreCheck(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	if err := StoreCheck(s)(ctx); err == nil {
		t.Error("empty store should fail the check")
	}

	if err := store.Seed(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := StoreCheck(s)(ctx); err != nil {
		t.Errorf("seeded store failed the check: %v", err)
	}
}

func TestWritableDirCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio", "cache")
	if err := WritableDirCheck(dir)(context.Background()); err != nil {
		t.Fatalf("expected writable dir, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe left %d files behind", len(entries))
	}
}

func TestAvailabilityChecks(t *testing.T) {
	ctx := context.Background()
	if err := AvailableCheck(fakeAvail{})(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := AvailableCheck(fakeAvail{err: errors.New("no device")})(ctx); err == nil {
		t.Error("expected failure")
	}
	if err := ServerCheck(fakePinger{err: errors.New("refused")})(ctx); err == nil {
		t.Error("expected failure")
	}
}
