package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stationpa/pkg/model"
)

// MemoryStore implements Store on process memory. All state is lost on restart.
// Reads return copies; callers never share memory with the store.
type MemoryStore struct {
	tplMu     sync.RWMutex
	templates map[string]*model.Template
	tplOrder  []string

	trainMu    sync.RWMutex
	trains     map[string]*model.Train
	trainOrder []string

	recMu    sync.RWMutex
	records  map[string]*model.Record
	recOrder []string

	stateMu sync.RWMutex
	state   map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*model.Template),
		trains:    make(map[string]*model.Train),
		records:   make(map[string]*model.Record),
		state:     make(map[string]string),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

// --- Templates ---

func (s *MemoryStore) ListTemplates(ctx context.Context) ([]model.Template, error) {
	return s.listTemplates(false), nil
}

func (s *MemoryStore) ListEnabledTemplates(ctx context.Context) ([]model.Template, error) {
	return s.listTemplates(true), nil
}

func (s *MemoryStore) listTemplates(enabledOnly bool) []model.Template {
	s.tplMu.RLock()
	defer s.tplMu.RUnlock()

	out := make([]model.Template, 0, len(s.tplOrder))
	for _, id := range s.tplOrder {
		t := s.templates[id]
		if enabledOnly && !t.Enabled {
			continue
		}
		out = append(out, *t)
	}
	return out
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	s.tplMu.RLock()
	defer s.tplMu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) CreateTemplate(ctx context.Context, t *model.Template) error {
	s.tplMu.Lock()
	defer s.tplMu.Unlock()

	if _, exists := s.templates[t.ID]; exists {
		return fmt.Errorf("template %s: %w", t.ID, ErrDuplicate)
	}
	cp := *t
	s.templates[t.ID] = &cp
	s.tplOrder = append(s.tplOrder, t.ID)
	return nil
}

// --- Trains ---

func (s *MemoryStore) ListTrains(ctx context.Context) ([]model.Train, error) {
	s.trainMu.RLock()
	defer s.trainMu.RUnlock()

	out := make([]model.Train, 0, len(s.trainOrder))
	for _, id := range s.trainOrder {
		out = append(out, *s.trains[id])
	}
	return out, nil
}

func (s *MemoryStore) GetTrain(ctx context.Context, id string) (*model.Train, error) {
	s.trainMu.RLock()
	defer s.trainMu.RUnlock()

	t, ok := s.trains[id]
	if !ok {
		return nil, fmt.Errorf("train %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) SaveTrain(ctx context.Context, t *model.Train) error {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	if _, exists := s.trains[t.ID]; !exists {
		s.trainOrder = append(s.trainOrder, t.ID)
	}
	cp := *t
	s.trains[t.ID] = &cp
	return nil
}

// --- Records ---

func (s *MemoryStore) CreateRecord(ctx context.Context, r *model.Record) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("record %s: %w", r.ID, ErrDuplicate)
	}
	cp := copyRecord(r)
	s.records[r.ID] = &cp
	s.recOrder = append(s.recOrder, r.ID)
	return nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	s.recMu.RLock()
	defer s.recMu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	cp := copyRecord(r)
	return &cp, nil
}

func (s *MemoryStore) UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (*model.Record, error) {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	updated := patch.Apply(*r)
	s.records[id] = &updated
	cp := copyRecord(&updated)
	return &cp, nil
}

func (s *MemoryStore) ListRecentRecords(ctx context.Context, limit int) ([]model.Record, error) {
	s.recMu.RLock()
	out := make([]model.Record, 0, len(s.recOrder))
	for i := len(s.recOrder) - 1; i >= 0; i-- {
		out = append(out, copyRecord(s.records[s.recOrder[i]]))
	}
	s.recMu.RUnlock()

	// Stable sort keeps the newest-inserted first among equal timestamps
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListPendingRecords(ctx context.Context, limit int) ([]model.Record, error) {
	s.recMu.RLock()
	defer s.recMu.RUnlock()

	var out []model.Record
	for _, id := range s.recOrder {
		r := s.records[id]
		if r.Status != model.RecordPending {
			continue
		}
		out = append(out, copyRecord(r))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func copyRecord(r *model.Record) model.Record {
	cp := *r
	if r.AnnouncedAt != nil {
		at := *r.AnnouncedAt
		cp.AnnouncedAt = &at
	}
	return cp
}

// --- State ---

func (s *MemoryStore) GetState(ctx context.Context, key string) (string, bool) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	v, ok := s.state[key]
	return v, ok
}

func (s *MemoryStore) SetState(ctx context.Context, key, val string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state[key] = val
	return nil
}
