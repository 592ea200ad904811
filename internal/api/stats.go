package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"stationpa/pkg/tracker"
)

// SubscriberCounter reports the number of live push subscribers.
type SubscriberCounter interface {
	Count() int
}

// StatsHandler serves delivery counters and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	hub     SubscriberCounter
	started time.Time

	mu     sync.Mutex
	maxMem uint64
}

func NewStatsHandler(t *tracker.Tracker, hub SubscriberCounter) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		hub:     hub,
		started: time.Now(),
	}
}

type Diagnostics struct {
	UptimeSec   int64  `json:"uptime_sec"`
	Goroutines  int    `json:"goroutines"`
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
}

type StatsResponse struct {
	Diagnostics Diagnostics              `json:"diagnostics"`
	Subscribers int                      `json:"subscribers"`
	Subjects    map[string]tracker.Stats `json:"subjects"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Diagnostics: h.gatherDiagnostics(),
		Subjects:    map[string]tracker.Stats{},
	}
	if h.tracker != nil {
		resp.Subjects = h.tracker.Snapshot()
	}
	if h.hub != nil {
		resp.Subscribers = h.hub.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherDiagnostics() Diagnostics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.Lock()
	if ms.Sys > h.maxMem {
		h.maxMem = ms.Sys
	}
	peak := h.maxMem
	h.mu.Unlock()

	return Diagnostics{
		UptimeSec:   int64(time.Since(h.started).Seconds()),
		Goroutines:  runtime.NumGoroutine(),
		MemoryMB:    bToMb(ms.Sys),
		MemoryMaxMB: bToMb(peak),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
