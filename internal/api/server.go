package api

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"stationpa/pkg/version"
)

// Handlers groups the endpoint handlers mounted by NewServer.
// Player is optional and only set when the server runs an embedded player.
type Handlers struct {
	Announcements *AnnouncementHandler
	Trains        *TrainHandler
	Stream        *StreamHandler
	Stats         *StatsHandler
	Player        *PlayerHandler
}

// NewServer creates and configures the HTTP server.
// shutdown is invoked asynchronously by POST /api/shutdown.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(NewMux(h, shutdown)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if h.Stream != nil {
		srv.RegisterOnShutdown(h.Stream.Close)
	}
	return srv
}

// corsMiddleware opens the API to consoles served from other origins and
// answers preflight requests itself.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			hdr.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux registers all routes.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	// 1. Health and meta
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/ping", handlePing)

	// 2. Announcements
	a := h.Announcements
	mux.HandleFunc("GET /api/announcements", a.HandleList)
	mux.HandleFunc("POST /api/announcements/templates", a.HandleCreateTemplate)
	mux.HandleFunc("POST /api/announcements/trigger", a.HandleTrigger)
	mux.HandleFunc("GET /api/announcements/pending", a.HandlePending)
	mux.HandleFunc("GET /api/announcements/{id}", a.HandleGet)
	mux.HandleFunc("POST /api/announcements/{id}/announced", a.HandleAnnounced)
	mux.HandleFunc("POST /api/announcements/{id}/failed", a.HandleFailed)

	// 3. Push channels
	mux.HandleFunc("GET /api/announcements/stream", h.Stream.HandleSSE)
	mux.HandleFunc("GET /api/ws", h.Stream.HandleWS)

	// 4. Trains
	mux.HandleFunc("GET /api/trains", h.Trains.HandleList)
	mux.HandleFunc("GET /api/trains/{id}", h.Trains.HandleGet)
	mux.HandleFunc("PUT /api/trains/{id}", h.Trains.HandleUpdate)

	// 5. Diagnostics
	mux.Handle("GET /api/stats", h.Stats)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/events", handleLatestEvent)
	mux.HandleFunc("GET /api/log/recent", handleRecentLogs)

	// 6. Embedded player
	if h.Player != nil {
		mux.HandleFunc("POST /api/player/control", h.Player.HandleControl)
		mux.HandleFunc("POST /api/player/volume", h.Player.HandleVolume)
		mux.HandleFunc("POST /api/player/autoplay", h.Player.HandleAutoPlay)
		mux.HandleFunc("GET /api/player/status", h.Player.HandleStatus)
	}

	// 7. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		if !localRequest(r) {
			slog.Warn("Rejected shutdown request", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"))
			writeError(w, http.StatusForbidden, "shutdown is only accepted from the local machine")
			return
		}
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// let the response flush first
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return mux
}

// localRequest reports whether r comes from a loopback address and, when a
// browser sent it, from a page on this server's own host.
func localRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// handlePing echoes PING_MESSAGE (usually set from .env).
func handlePing(w http.ResponseWriter, r *http.Request) {
	msg := os.Getenv("PING_MESSAGE")
	if msg == "" {
		msg = "ping"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}
