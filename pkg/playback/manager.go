// Package playback drives spoken delivery of pending announcement records.
package playback

import (
	"log/slog"
	"sync"

	"stationpa/pkg/model"
)

// Manager is the bounded FIFO of records waiting to be spoken.
type Manager struct {
	mu      sync.RWMutex
	queue   []model.Record
	maxSize int
}

// NewManager creates a new playback queue manager.
func NewManager(maxSize int) *Manager {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Manager{
		queue:   make([]model.Record, 0, maxSize),
		maxSize: maxSize,
	}
}

// Enqueue appends a record. Records already queued and records beyond
// capacity are ignored; the return value reports whether r was added.
func (m *Manager) Enqueue(r model.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range m.queue {
		if q.ID == r.ID {
			return false
		}
	}
	if len(m.queue) >= m.maxSize {
		slog.Info("PlaybackQueue: Queue full, dropping record", "id", r.ID, "max", m.maxSize)
		return false
	}

	m.queue = append(m.queue, r)
	slog.Debug("PlaybackQueue: Enqueued record", "id", r.ID, "trigger", r.TriggerType, "queue_len", len(m.queue))
	return true
}

// Pop retrieves and removes the next record from the queue.
func (m *Manager) Pop() (model.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return model.Record{}, false
	}
	r := m.queue[0]
	m.queue = m.queue[1:]
	return r, true
}

// Count returns the number of items in the queue.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue)
}

// Clear clears the queue.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = make([]model.Record, 0, m.maxSize)
}
