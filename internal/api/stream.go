package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stationpa/pkg/announcement"
	"stationpa/pkg/broadcast"
	"stationpa/pkg/logging"
)

const (
	// subscriber inbox size; a client this far behind is dropped
	streamBuffer = 32
	wsWriteWait  = 10 * time.Second

	defaultHeartbeat = 30 * time.Second
)

// WebSocket message types beyond the broadcast events.
const (
	msgPing                = "ping"
	msgPong                = "pong"
	msgGetAnnouncements    = "get_announcements"
	msgAnnouncementsUpdate = "announcements_update"
)

// SnapshotSource provides the listing sent on a WebSocket refresh request.
type SnapshotSource interface {
	Snapshot(ctx context.Context, allTemplates bool) (*announcement.Snapshot, error)
}

// StreamHandler serves the push channels (SSE and WebSocket).
type StreamHandler struct {
	hub       *broadcast.Hub
	snapshots SnapshotSource
	heartbeat time.Duration
	upgrader  websocket.Upgrader

	// closed by Close; long-lived streams end when it is
	closing   chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler creates a new StreamHandler. A non-positive heartbeat uses 30s.
func NewStreamHandler(hub *broadcast.Hub, snapshots SnapshotSource, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &StreamHandler{
		hub:       hub,
		snapshots: snapshots,
		heartbeat: heartbeat,
		closing:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// consoles are served from other origins during development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Close ends every open SSE stream and WebSocket connection. The server runs it
// on shutdown, which does not cancel the contexts of in-flight requests.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() {
		slog.Debug("Stream: closing push channels", "subscribers", h.hub.Count())
		close(h.closing)
	})
}

// HandleSSE handles GET /api/announcements/stream
func (h *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the server write timeout would otherwise cut the stream
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logging.Trace(slog.Default(), "SSE: write deadline not supported", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(streamBuffer)
	defer h.hub.Unsubscribe(sub)
	slog.Debug("SSE: client connected", "remote", r.RemoteAddr, "subscribers", h.hub.Count())

	if err := writeSSE(w, broadcast.Event{Type: broadcast.EventConnected}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		slog.Warn("SSE: streaming not supported", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			slog.Debug("SSE: client disconnected", "remote", r.RemoteAddr)
			return
		case <-sub.Done():
			slog.Debug("SSE: subscription dropped", "remote", r.RemoteAddr)
			return
		case <-h.closing:
			return
		case ev := <-sub.C():
			err = writeSSE(w, ev)
		case <-ticker.C:
			_, err = io.WriteString(w, ": heartbeat\n\n")
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			slog.Debug("SSE: write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// writeSSE frames one event as a single data line.
func writeSSE(w io.Writer, ev broadcast.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// HandleWS handles GET /api/ws. Each connection has one writer goroutine fed
// by the hub subscription and by replies to client requests.
func (h *StreamHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an error status
		slog.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub := h.hub.Subscribe(streamBuffer)
	ctx, cancel := context.WithCancel(r.Context())
	replies := make(chan broadcast.Event, 8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(ctx, conn, sub, replies)
		cancel()
		_ = conn.Close()
	}()

	slog.Debug("WebSocket: client connected", "remote", r.RemoteAddr, "subscribers", h.hub.Count())
	h.readLoop(ctx, conn, replies)

	cancel()
	h.hub.Unsubscribe(sub)
	wg.Wait()
	slog.Debug("WebSocket: client disconnected", "remote", r.RemoteAddr)
}

type wsRequest struct {
	Type string `json:"type"`
}

func (h *StreamHandler) readLoop(ctx context.Context, conn *websocket.Conn, replies chan<- broadcast.Event) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket: read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Debug("WebSocket: ignoring malformed message", "error", err)
			continue
		}

		var reply broadcast.Event
		switch req.Type {
		case msgPing:
			reply = broadcast.Event{Type: msgPong}
		case msgGetAnnouncements:
			snap, err := h.snapshots.Snapshot(ctx, true)
			if err != nil {
				slog.Error("WebSocket: snapshot failed", "error", err)
				continue
			}
			reply = broadcast.Event{Type: msgAnnouncementsUpdate, Data: snap}
		default:
			slog.Debug("WebSocket: unknown message type", "type", req.Type)
			continue
		}

		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *broadcast.Subscription, replies <-chan broadcast.Event) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		var ev broadcast.Event
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(wsWriteWait))
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(wsWriteWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		case ev = <-sub.C():
		case ev = <-replies:
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("WebSocket: write failed", "error", err)
			return
		}
	}
}
