package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker counts events per subject. Subjects are trigger types for the
// announcement lifecycle and provider names (edge-tts, gemini, broadcast) for
// the supporting services.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*Stats
}

// Stats holds the counters for one subject.
// Fields are accessed atomically.
type Stats struct {
	Created     int64 `json:"created,omitempty"`
	Announced   int64 `json:"announced,omitempty"`
	Failed      int64 `json:"failed,omitempty"`
	Dropped     int64 `json:"dropped,omitempty"`
	CacheHits   int64 `json:"cacheHits,omitempty"`
	CacheMisses int64 `json:"cacheMisses,omitempty"`
	APISuccess  int64 `json:"apiSuccess,omitempty"`
	APIFailures int64 `json:"apiFailures,omitempty"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*Stats),
	}
}

// getStats returns the stats object for a subject, creating it if needed.
func (t *Tracker) getStats(subject string) *Stats {
	t.mu.RLock()
	s, ok := t.stats[subject]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[subject]; ok {
		return s
	}
	s = &Stats{}
	t.stats[subject] = s
	return s
}

// A nil *Tracker is valid and counts nothing.

func (t *Tracker) TrackCreated(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).Created, 1)
	}
}

func (t *Tracker) TrackAnnounced(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).Announced, 1)
	}
}

func (t *Tracker) TrackFailed(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).Failed, 1)
	}
}

func (t *Tracker) TrackDropped(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).Dropped, 1)
	}
}

func (t *Tracker) TrackCacheHit(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).CacheHits, 1)
	}
}

func (t *Tracker) TrackCacheMiss(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).CacheMisses, 1)
	}
}

func (t *Tracker) TrackAPISuccess(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).APISuccess, 1)
	}
}

func (t *Tracker) TrackAPIFailure(subject string) {
	if t != nil {
		atomic.AddInt64(&t.getStats(subject).APIFailures, 1)
	}
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]Stats {
	result := make(map[string]Stats)
	if t == nil {
		return result
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for k, v := range t.stats {
		result[k] = Stats{
			Created:     atomic.LoadInt64(&v.Created),
			Announced:   atomic.LoadInt64(&v.Announced),
			Failed:      atomic.LoadInt64(&v.Failed),
			Dropped:     atomic.LoadInt64(&v.Dropped),
			CacheHits:   atomic.LoadInt64(&v.CacheHits),
			CacheMisses: atomic.LoadInt64(&v.CacheMisses),
			APISuccess:  atomic.LoadInt64(&v.APISuccess),
			APIFailures: atomic.LoadInt64(&v.APIFailures),
		}
	}
	return result
}
