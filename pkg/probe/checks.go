package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"stationpa/pkg/store"
)

// StoreCheck verifies the store answers listing queries.
func StoreCheck(s store.Store) CheckFunc {
	return func(ctx context.Context) error {
		tpls, err := s.ListTemplates(ctx)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		if len(tpls) == 0 {
			return fmt.Errorf("no announcement templates")
		}
		if _, err := s.ListTrains(ctx); err != nil {
			return fmt.Errorf("list trains: %w", err)
		}
		return nil
	}
}

// WritableDirCheck verifies dir exists (creating it) and accepts files.
func WritableDirCheck(dir string) CheckFunc {
	return func(ctx context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("not writable: %w", err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}

// Pinger is anything with a context-aware health call.
type Pinger interface {
	Health(ctx context.Context) error
}

// ServerCheck verifies the announcement server is reachable.
func ServerCheck(p Pinger) CheckFunc {
	return p.Health
}

// Availability reports whether a device or engine can be used.
type Availability interface {
	Available() error
}

// AvailableCheck wraps an Availability.
func AvailableCheck(a Availability) CheckFunc {
	return func(ctx context.Context) error {
		return a.Available()
	}
}
