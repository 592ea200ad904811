// Package broadcast fans new announcement records out to push subscribers
// (SSE streams and WebSocket connections). Delivery is at most once per
// subscriber; clients reconcile by polling.
package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"stationpa/pkg/logging"
	"stationpa/pkg/model"
	"stationpa/pkg/tracker"
)

// Event types on the push channel.
const (
	EventConnected       = "connected"
	EventNewAnnouncement = "new_announcement"
)

// Event is one push message. Data is omitted for control events.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Subscription is a single subscriber's inbox.
type Subscription struct {
	id   uint64
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// C returns the channel events are delivered on.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Done is closed when the subscription ends, either by Unsubscribe or
// because the hub dropped a slow consumer.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub is the registry of subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64

	tracker *tracker.Tracker
}

// NewHub creates an empty hub. The tracker may be nil.
func NewHub(t *tracker.Tracker) *Hub {
	return &Hub{
		subs:    make(map[uint64]*Subscription),
		tracker: t,
	}
}

// Subscribe registers a subscriber with the given inbox size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{
		id:   h.nextID,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	h.subs[s.id] = s
	slog.Debug("Broadcast: subscriber added", "id", s.id, "total", len(h.subs))
	return s
}

// Unsubscribe removes the subscriber. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()
	s.close()
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers ev to every subscriber without blocking. It iterates a
// snapshot of the registry, so removals during the loop cannot skip or
// double-notify anyone. A subscriber whose inbox is full is removed.
// Returns the number of subscribers that received the event.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range snapshot {
		select {
		case <-s.done:
			continue
		default:
		}

		select {
		case s.ch <- ev:
			delivered++
			logging.Trace(slog.Default(), "Broadcast: delivered", "subscriber", s.id, "type", ev.Type)
		default:
			slog.Warn("Broadcast: dropping slow subscriber", "id", s.id)
			h.tracker.TrackDropped("broadcast")
			h.Unsubscribe(s)
		}
	}
	return delivered
}

// PublishRecord announces a newly created record.
func (h *Hub) PublishRecord(r model.Record) {
	h.Publish(Event{Type: EventNewAnnouncement, Data: r})
}

// Records subscribes in-process consumers to new records. The returned channel
// closes when ctx ends or the hub drops the subscriber for being slow.
func (h *Hub) Records(ctx context.Context, buffer int) <-chan model.Record {
	sub := h.Subscribe(buffer)
	out := make(chan model.Record, buffer)
	go func() {
		defer close(out)
		defer h.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				return
			case ev := <-sub.C():
				rec, ok := ev.Data.(model.Record)
				if ev.Type != EventNewAnnouncement || !ok {
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
