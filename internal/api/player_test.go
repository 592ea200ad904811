package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationpa/pkg/audio"
	"stationpa/pkg/playback"
	"stationpa/pkg/store"
)

type mockAudio struct {
	paused  bool
	volume  float64
	hasLast bool
	replays int
}

func (m *mockAudio) Available() error          { return nil }
func (m *mockAudio) Play(string, func()) error { return nil }
func (m *mockAudio) Pause()                    { m.paused = true }
func (m *mockAudio) Resume()                   { m.paused = false }
func (m *mockAudio) Stop()                     {}
func (m *mockAudio) SetVolume(v float64)       { m.volume = v }
func (m *mockAudio) Volume() float64           { return m.volume }
func (m *mockAudio) Remaining() time.Duration  { return 1500 * time.Millisecond }
func (m *mockAudio) State() audio.State {
	if m.paused {
		return audio.StatePaused
	}
	return audio.StatePlaying
}
func (m *mockAudio) ReplayLast(onComplete func()) bool {
	if !m.hasLast {
		return false
	}
	m.replays++
	return true
}

type mockPlayer struct {
	current  string
	skips    int
	autoPlay bool
}

func (m *mockPlayer) Skip() bool {
	if m.current == "" {
		return false
	}
	m.skips++
	return true
}
func (m *mockPlayer) SetAutoPlay(on bool) { m.autoPlay = on }
func (m *mockPlayer) Status() playback.Status {
	return playback.Status{AutoPlay: m.autoPlay, Current: m.current}
}

func playerRequest(h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestPlayerHandler_Control(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		current   string
		hasLast   bool
		wantCode  int
		wantState string
	}{
		{"pause", "pause", "", false, http.StatusOK, "paused"},
		{"resume", "resume", "", false, http.StatusOK, "playing"},
		{"skip while speaking", "skip", "rec_1", false, http.StatusOK, "skipped"},
		{"skip when idle", "skip", "", false, http.StatusOK, "idle"},
		{"replay", "replay", "", true, http.StatusOK, "replaying"},
		{"unknown", "rewind", "", false, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAudio{hasLast: tt.hasLast}
			p := &mockPlayer{current: tt.current}
			h := NewPlayerHandler(a, p, nil)

			w := playerRequest(h.HandleControl, http.MethodPost, `{"action":"`+tt.action+`"}`)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantState != "" {
				assert.Equal(t, tt.wantState, decode[map[string]string](t, w)["state"])
			}
		})
	}
}

func TestPlayerHandler_ReplayWithoutHistory(t *testing.T) {
	h := NewPlayerHandler(&mockAudio{}, &mockPlayer{}, nil)
	w := playerRequest(h.HandleControl, http.MethodPost, `{"action":"replay"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "error", decode[map[string]string](t, w)["status"])
}

func TestPlayerHandler_Volume(t *testing.T) {
	a := &mockAudio{}
	h := NewPlayerHandler(a, &mockPlayer{}, nil)

	w := playerRequest(h.HandleVolume, http.MethodPost, `{"volume":0.4}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.4, a.volume, 1e-9)

	w = playerRequest(h.HandleVolume, http.MethodPost, `{"volume":1.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlayerHandler_AutoPlayAndStatus(t *testing.T) {
	p := &mockPlayer{current: "rec_7"}
	h := NewPlayerHandler(&mockAudio{volume: 0.8}, p, nil)

	w := playerRequest(h.HandleAutoPlay, http.MethodPost, `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, p.autoPlay)

	w = playerRequest(h.HandleStatus, http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[PlayerStatusResponse](t, w)
	assert.True(t, resp.AutoPlay)
	assert.Equal(t, "rec_7", resp.Current)
	assert.InDelta(t, 0.8, resp.Volume, 1e-9)
	assert.Equal(t, audio.StatePlaying, resp.Output)
	assert.True(t, resp.IsPlaying)
	assert.InDelta(t, 1.5, resp.RemainingSec, 1e-9)
}

func TestPlayerHandler_SettingsPersist(t *testing.T) {
	ctx := context.Background()
	settings := store.NewMemoryStore()

	h := NewPlayerHandler(&mockAudio{}, &mockPlayer{}, settings)
	require.Equal(t, http.StatusOK, playerRequest(h.HandleVolume, http.MethodPost, `{"volume":0.35}`).Code)
	require.Equal(t, http.StatusOK, playerRequest(h.HandleAutoPlay, http.MethodPost, `{"enabled":false}`).Code)

	v, ok := settings.GetState(ctx, settingVolume)
	assert.True(t, ok)
	assert.Equal(t, "0.35", v)

	// a fresh handler picks the settings up again
	a, p := &mockAudio{volume: 1}, &mockPlayer{autoPlay: true}
	NewPlayerHandler(a, p, settings).Restore(ctx)
	assert.InDelta(t, 0.35, a.volume, 1e-9)
	assert.False(t, p.autoPlay)

	// a nil store is a no-op
	NewPlayerHandler(a, p, nil).Restore(ctx)
}
