package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"stationpa/pkg/audio"
	"stationpa/pkg/playback"
)

// PlayerController is the part of the playback agent the console controls.
type PlayerController interface {
	Skip() bool
	SetAutoPlay(on bool)
	Status() playback.Status
}

// SettingsStore keeps console settings across restarts.
type SettingsStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

const (
	settingVolume   = "player.volume"
	settingAutoPlay = "player.autoplay"
)

// PlayerHandler handles control of the embedded announcement player.
type PlayerHandler struct {
	audio    audio.Service
	player   PlayerController
	settings SettingsStore
}

// NewPlayerHandler creates a new PlayerHandler. settings may be nil.
func NewPlayerHandler(audioMgr audio.Service, player PlayerController, settings SettingsStore) *PlayerHandler {
	return &PlayerHandler{
		audio:    audioMgr,
		player:   player,
		settings: settings,
	}
}

// Restore applies the volume and auto-play last set from the console.
func (h *PlayerHandler) Restore(ctx context.Context) {
	if h.settings == nil {
		return
	}
	if v, ok := h.settings.GetState(ctx, settingVolume); ok {
		if vol, err := strconv.ParseFloat(v, 64); err == nil {
			h.audio.SetVolume(vol)
		}
	}
	if v, ok := h.settings.GetState(ctx, settingAutoPlay); ok {
		if on, err := strconv.ParseBool(v); err == nil {
			h.player.SetAutoPlay(on)
		}
	}
}

func (h *PlayerHandler) save(ctx context.Context, key, val string) {
	if h.settings == nil {
		return
	}
	if err := h.settings.SetState(ctx, key, val); err != nil {
		slog.Warn("Failed to persist player setting", "key", key, "error", err)
	}
}

// PlayerControlRequest represents a playback control command.
type PlayerControlRequest struct {
	Action string `json:"action"` // "pause", "resume", "skip", "replay"
}

// PlayerVolumeRequest represents a volume change request.
type PlayerVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// AutoPlayRequest toggles automatic playback of new records.
type AutoPlayRequest struct {
	Enabled bool `json:"enabled"`
}

// PlayerStatusResponse represents the player status.
type PlayerStatusResponse struct {
	playback.Status
	Output       audio.State `json:"output"`
	IsPlaying    bool        `json:"isPlaying"`
	IsPaused     bool        `json:"isPaused"`
	Volume       float64     `json:"volume"`
	RemainingSec float64     `json:"remainingSec"`
}

// HandleControl handles POST /api/player/control
func (h *PlayerHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req PlayerControlRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}

	var state string
	switch req.Action {
	case "pause":
		h.audio.Pause()
		state = "paused"
	case "resume":
		h.audio.Resume()
		state = "playing"
	case "skip", "stop":
		if !h.player.Skip() {
			state = "idle"
			break
		}
		state = "skipped"
	case "replay":
		if !h.audio.ReplayLast(nil) {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "error",
				"message": "No previous announcement to replay",
			})
			return
		}
		state = "replaying"
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	slog.Debug("Player control", "action", req.Action, "state", state)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  state,
	})
}

// HandleVolume handles POST /api/player/volume
func (h *PlayerHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req PlayerVolumeRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		writeError(w, http.StatusBadRequest, "volume must be between 0 and 1")
		return
	}

	h.audio.SetVolume(req.Volume)
	h.save(r.Context(), settingVolume, strconv.FormatFloat(req.Volume, 'f', -1, 64))
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"volume": h.audio.Volume(),
	})
}

// HandleAutoPlay handles POST /api/player/autoplay
func (h *PlayerHandler) HandleAutoPlay(w http.ResponseWriter, r *http.Request) {
	var req AutoPlayRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	h.player.SetAutoPlay(req.Enabled)
	h.save(r.Context(), settingAutoPlay, strconv.FormatBool(req.Enabled))
	slog.Info("Player auto-play changed", "enabled", req.Enabled)
	writeJSON(w, http.StatusOK, h.status())
}

// HandleStatus handles GET /api/player/status
func (h *PlayerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

func (h *PlayerHandler) status() PlayerStatusResponse {
	state := h.audio.State()
	return PlayerStatusResponse{
		Status:       h.player.Status(),
		Output:       state,
		IsPlaying:    state == audio.StatePlaying,
		IsPaused:     state == audio.StatePaused,
		Volume:       h.audio.Volume(),
		RemainingSec: h.audio.Remaining().Seconds(),
	}
}
