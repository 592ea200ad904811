// Package audio plays synthesized announcements on the local sound device.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"stationpa/pkg/config"
)

// ErrNoOutput is returned when no audio device could be opened.
var ErrNoOutput = errors.New("audio output unavailable")

const (
	outputRate      = beep.SampleRate(48000)
	resampleQuality = 3
	// volumes at or below this are muted rather than attenuated
	muteBelow = 0.01
)

// State is what the output device is doing.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Service is the playback surface used by the speech adapter and the console.
type Service interface {
	// Available opens the output device on first use.
	Available() error
	// Play replaces anything playing with path. onComplete runs when the
	// file ends on its own, never after Stop or a replacing Play.
	Play(path string, onComplete func()) error
	Pause()
	Resume()
	Stop()
	// ReplayLast plays the previous file again if it still exists.
	ReplayLast(onComplete func()) bool
	SetVolume(vol float64)
	Volume() float64
	State() State
	Remaining() time.Duration
}

// track is one file on the speaker.
type track struct {
	path   string
	source beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	gain   *effects.Volume
	paused bool
}

// Manager implements Service on gopxl/beep's global speaker.
type Manager struct {
	cfg config.SpeechConfig

	openOnce sync.Once
	openErr  error

	mu     sync.Mutex
	volume float64
	cur    *track
	last   string
}

// New creates a Manager. cfg may be nil for full volume and no effects.
func New(cfg *config.SpeechConfig) *Manager {
	m := &Manager{volume: 1}
	if cfg != nil {
		m.cfg = *cfg
		m.volume = clampVolume(cfg.Volume)
	}
	return m
}

// Available opens the speaker once; the outcome is remembered.
func (m *Manager) Available() error {
	m.openOnce.Do(func() {
		if err := speaker.Init(outputRate, outputRate.N(100*time.Millisecond)); err != nil {
			slog.Error("Audio: speaker init failed", "error", err)
			m.openErr = fmt.Errorf("%w: %v", ErrNoOutput, err)
		}
	})
	return m.openErr
}

// Play starts path from the beginning.
func (m *Manager) Play(path string, onComplete func()) error {
	if err := m.Available(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	source, format, err := DecodeMedia(path)
	if err != nil {
		return err
	}

	t := &track{path: path, source: source, format: format}
	t.gain = &effects.Volume{Streamer: m.chain(source, format), Base: 2}
	setGain(t.gain, m.volume)
	t.ctrl = &beep.Ctrl{Streamer: t.gain}

	m.cur = t
	m.last = path
	speaker.Play(beep.Seq(t.ctrl, beep.Callback(func() {
		// off the speaker goroutine before taking m.mu
		go m.ended(t, onComplete)
	})))

	slog.Debug("Audio: playing", "path", path, "length", format.SampleRate.D(source.Len()))
	return nil
}

// chain resamples to the output rate and applies the configured station effects.
func (m *Manager) chain(source beep.Streamer, format beep.Format) beep.Streamer {
	s := beep.Streamer(beep.Resample(resampleQuality, format.SampleRate, outputRate, source))
	if f := m.cfg.PAFilter; f.Enabled {
		s = NewPAFilter(s, float64(outputRate), f.LowCutoff, f.HighCutoff)
	}
	if m.cfg.Chime {
		s = beep.Seq(NewChime(outputRate), s)
	}
	return s
}

func (m *Manager) ended(t *track, onComplete func()) {
	m.mu.Lock()
	if m.cur != t {
		m.mu.Unlock()
		return
	}
	m.cur = nil
	m.mu.Unlock()

	t.source.Close()
	if onComplete != nil {
		onComplete()
	}
}

func (m *Manager) Pause()  { m.setPaused(true) }
func (m *Manager) Resume() { m.setPaused(false) }

func (m *Manager) setPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil || m.cur.paused == paused {
		return
	}
	speaker.Lock()
	m.cur.ctrl.Paused = paused
	speaker.Unlock()
	m.cur.paused = paused
}

// Stop drops the current track without running its completion callback.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.cur == nil {
		return
	}
	speaker.Clear()
	m.cur.source.Close()
	m.cur = nil
}

// Close stops playback.
func (m *Manager) Close() {
	m.Stop()
}

// State reports whether a track is playing, paused or absent.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.cur == nil:
		return StateIdle
	case m.cur.paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// SetVolume sets the level, clamped to 0..1, including on the live track.
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clampVolume(vol)
	if m.cur != nil {
		speaker.Lock()
		setGain(m.cur.gain, m.volume)
		speaker.Unlock()
	}
}

func (m *Manager) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// LastFile returns the most recently started file.
func (m *Manager) LastFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Manager) ReplayLast(onComplete func()) bool {
	last := m.LastFile()
	if last == "" {
		return false
	}
	if _, err := os.Stat(last); err != nil {
		return false
	}
	return m.Play(last, onComplete) == nil
}

// Remaining is the unplayed time of the current file, excluding the chime.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return 0
	}
	speaker.Lock()
	left := m.cur.source.Len() - m.cur.source.Position()
	speaker.Unlock()
	return m.cur.format.SampleRate.D(max(left, 0))
}

func clampVolume(vol float64) float64 {
	return min(max(vol, 0), 1)
}

// setGain maps a linear 0..1 level onto effects.Volume's base-2 exponent.
func setGain(v *effects.Volume, level float64) {
	v.Silent = level <= muteBelow
	if v.Silent {
		v.Volume = -10
		return
	}
	v.Volume = math.Log2(level)
}

type decoder func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

func decodeMP3(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) }
func decodeWAV(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) }

// DecodeMedia opens an mp3 or wav file, trying the decoder matching the
// extension first. The caller closes the streamer.
func DecodeMedia(path string) (beep.StreamSeekCloser, beep.Format, error) {
	decoders := []decoder{decodeMP3, decodeWAV}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		decoders = []decoder{decodeWAV, decodeMP3}
	}

	var errs []error
	for _, decode := range decoders {
		f, err := os.Open(path)
		if err != nil {
			return nil, beep.Format{}, err
		}
		s, format, err := decode(f)
		if err == nil {
			return s, format, nil
		}
		f.Close()
		errs = append(errs, err)
	}
	return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, errors.Join(errs...))
}
