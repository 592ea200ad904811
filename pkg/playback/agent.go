package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"stationpa/pkg/config"
	"stationpa/pkg/logging"
	"stationpa/pkg/model"
	"stationpa/pkg/speech"
)

// Source is where pending records come from and where outcomes are reported.
// announcement.Service and client.Client both satisfy it.
type Source interface {
	Pending(ctx context.Context, limit int) ([]model.Record, error)
	MarkAnnounced(ctx context.Context, id, audioURL string) (*model.Record, error)
	MarkFailed(ctx context.Context, id string) (*model.Record, error)
}

// Speaker speaks one message at a time.
type Speaker interface {
	Speak(ctx context.Context, text string, lang model.Language, onComplete func()) error
	Stop()
	Supported() error
}

// StreamFunc opens a push stream of new records. The channel closes when the stream ends.
type StreamFunc func(ctx context.Context) (<-chan model.Record, error)

// Status is a snapshot of the agent for the control API.
type Status struct {
	AutoPlay  bool   `json:"autoPlay"`
	Queued    int    `json:"queued"`
	Current   string `json:"current,omitempty"`
	Spoken    int    `json:"spoken"`
	Failed    int    `json:"failed"`
	LastError string `json:"lastError,omitempty"`
}

// Agent polls (and optionally streams) pending records, speaks them in order
// and reports announced or failed back to the source. Nothing is retried.
type Agent struct {
	src      Source
	speaker  Speaker
	stream   StreamFunc
	queue    *Manager
	interval time.Duration
	// handled remembers reported records so a late poll does not replay them
	handled *cache.Cache
	wake    chan struct{}

	mu        sync.Mutex
	autoPlay  bool
	current   string
	skipped   string
	spoken    int
	failed    int
	lastError string
}

// NewAgent creates an agent. stream may be nil to rely on polling alone.
func NewAgent(src Source, spk Speaker, stream StreamFunc, cfg *config.PlayerConfig) *Agent {
	interval := 5 * time.Second
	size := 20
	autoPlay := true
	if cfg != nil {
		if d := time.Duration(cfg.PollInterval); d > 0 {
			interval = d
		}
		if cfg.QueueSize > 0 {
			size = cfg.QueueSize
		}
		autoPlay = cfg.AutoPlay
	}
	return &Agent{
		src:      src,
		speaker:  spk,
		stream:   stream,
		queue:    NewManager(size),
		interval: interval,
		handled:  cache.New(10*time.Minute, 5*time.Minute),
		wake:     make(chan struct{}, 1),
		autoPlay: autoPlay,
	}
}

// Run polls and speaks until ctx ends.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.speaker.Supported(); err != nil {
		slog.Error("Playback: speech output unavailable, auto play disabled", "error", err)
		a.SetAutoPlay(false)
	}
	if a.stream != nil {
		go a.follow(ctx)
	}

	slog.Info("Playback agent started", "interval", a.interval, "auto_play", a.AutoPlay())
	if _, err := a.Poll(ctx); err != nil {
		slog.Warn("Playback: initial poll failed", "error", err)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		a.Drain(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Playback agent stopped")
			return nil
		case <-ticker.C:
			if _, err := a.Poll(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Playback: poll failed", "error", err)
			}
		case <-a.wake:
		}
	}
}

// follow keeps a push stream open, reconnecting after each poll interval.
func (a *Agent) follow(ctx context.Context) {
	for ctx.Err() == nil {
		recs, err := a.stream(ctx)
		if err != nil {
			slog.Debug("Playback: stream unavailable", "error", err)
		} else {
			for r := range recs {
				if a.enqueue(r) {
					a.notify()
				}
			}
			slog.Debug("Playback: stream closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.interval):
		}
	}
}

// Poll queues every pending record not yet handled. Returns how many were added.
func (a *Agent) Poll(ctx context.Context) (int, error) {
	recs, err := a.src.Pending(ctx, a.queue.maxSize)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, r := range recs {
		if a.enqueue(r) {
			added++
		}
	}
	if added > 0 {
		slog.Debug("Playback: queued pending records", "count", added)
	}
	return added, nil
}

// enqueue queues r unless it already reached a final status or was handled.
func (a *Agent) enqueue(r model.Record) bool {
	if r.Status.IsTerminal() {
		logging.Trace(slog.Default(), "Playback: skipping settled record", "id", r.ID, "status", r.Status)
		return false
	}
	if _, seen := a.handled.Get(r.ID); seen {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == r.ID {
		return false
	}
	return a.queue.Enqueue(r)
}

func (a *Agent) notify() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Drain speaks queued records one at a time while auto play is on.
func (a *Agent) Drain(ctx context.Context) {
	for ctx.Err() == nil {
		r, ok := a.next()
		if !ok {
			return
		}
		a.process(ctx, r)
	}
}

// next pops the head of the queue and marks it current in one step.
func (a *Agent) next() (model.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.autoPlay {
		return model.Record{}, false
	}
	r, ok := a.queue.Pop()
	if ok {
		a.current = r.ID
	}
	return r, ok
}

func (a *Agent) process(ctx context.Context, r model.Record) {
	defer func() {
		a.mu.Lock()
		a.current = ""
		a.mu.Unlock()
	}()

	slog.Info("Playback: speaking", "id", r.ID, "lang", r.Language, "trigger", r.TriggerType)
	err := a.speaker.Speak(ctx, r.Message, r.Language, nil)

	// Reports outlive shutdown of the speaking context
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	switch {
	case err == nil:
		a.report(rctx, r.ID, true, "")
	case errors.Is(err, speech.ErrUnsupported):
		slog.Error("Playback: speech not supported, auto play disabled", "error", err)
		a.setError(err.Error())
		a.SetAutoPlay(false)
		a.queue.Clear()
	case errors.Is(err, speech.ErrPreempted):
		a.mu.Lock()
		skipped := a.skipped == r.ID
		a.skipped = ""
		a.mu.Unlock()
		if skipped {
			a.report(rctx, r.ID, false, "skipped by operator")
		}
	case ctx.Err() != nil:
		// Shutting down: leave the record pending for the next player
	default:
		slog.Warn("Playback: speech failed", "id", r.ID, "error", err)
		a.report(rctx, r.ID, false, err.Error())
	}
}

func (a *Agent) report(ctx context.Context, id string, ok bool, reason string) {
	a.handled.SetDefault(id, struct{}{})

	var err error
	if ok {
		_, err = a.src.MarkAnnounced(ctx, id, "")
	} else {
		_, err = a.src.MarkFailed(ctx, id)
	}

	a.mu.Lock()
	if ok {
		a.spoken++
	} else {
		a.failed++
		a.lastError = reason
	}
	a.mu.Unlock()

	if err != nil {
		slog.Error("Playback: failed to report outcome", "id", id, "announced", ok, "error", err)
	}
}

func (a *Agent) setError(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.mu.Unlock()
}

// Skip stops the record being spoken and reports it failed.
// Returns false when nothing is playing.
func (a *Agent) Skip() bool {
	a.mu.Lock()
	if a.current == "" {
		a.mu.Unlock()
		return false
	}
	a.skipped = a.current
	a.mu.Unlock()

	a.speaker.Stop()
	return true
}

// SetAutoPlay turns automatic speaking of queued records on or off.
func (a *Agent) SetAutoPlay(on bool) {
	a.mu.Lock()
	a.autoPlay = on
	a.mu.Unlock()
	if on {
		a.notify()
	}
}

// AutoPlay reports whether queued records are spoken automatically.
func (a *Agent) AutoPlay() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.autoPlay
}

// Status returns a snapshot for the control API.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		AutoPlay:  a.autoPlay,
		Queued:    a.queue.Count(),
		Current:   a.current,
		Spoken:    a.spoken,
		Failed:    a.failed,
		LastError: a.lastError,
	}
}
