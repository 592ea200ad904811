// Package speech turns announcement text into audible speech, one utterance at a time.
package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
	"stationpa/pkg/tracker"
	"stationpa/pkg/tts"
)

var (
	// ErrUnsupported is returned when no synthesizer or audio output is available.
	ErrUnsupported = errors.New("speech synthesis not supported")
	// ErrPreempted is returned by a Speak call cancelled by a newer Speak or by Stop.
	ErrPreempted = errors.New("speech preempted")
)

// Platform error codes.
const (
	CodeSynthesisFailed = "synthesis-failed"
	CodeNetwork         = "network"
	CodeAudioHardware   = "audio-hardware"
)

// PlatformError is a synthesis or playback failure with the platform's error code.
type PlatformError struct {
	Code string
	Err  error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("speech %s: %v", e.Code, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// State is the speaker's playback state.
type State string

const (
	StateIdle     State = "idle"
	StateSpeaking State = "speaking"
)

// Output plays audio files. audio.Manager implements it.
type Output interface {
	Available() error
	Play(path string, onComplete func()) error
	Stop()
}

// Speaker is a single-flight speech adapter: at most one utterance is active,
// and a new Speak cancels the active one.
type Speaker struct {
	synth   tts.Provider
	out     Output
	voices  map[string]string
	dir     string
	cache   *cache.Cache
	tracker *tracker.Tracker

	mu      sync.Mutex
	state   State
	session uint64
	cancel  context.CancelFunc
}

// New creates a speaker. synth or out may be nil, in which case Speak reports ErrUnsupported.
// voices maps a locale (en-IN) to a provider voice id.
func New(synth tts.Provider, out Output, cfg *config.SpeechConfig, voices map[string]string, tr *tracker.Tracker) *Speaker {
	dir := filepath.Join(os.TempDir(), "stationpa-audio")
	ttl := 30 * time.Minute
	if cfg != nil {
		if cfg.CacheDir != "" {
			dir = cfg.CacheDir
		}
		if d := time.Duration(cfg.CacheTTL); d > 0 {
			ttl = d
		}
	}

	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(key string, v any) {
		if path, ok := v.(string); ok {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				slog.Warn("Speech: failed to remove cached audio", "path", path, "error", err)
			}
		}
	})

	return &Speaker{
		synth:   synth,
		out:     out,
		voices:  voices,
		dir:     dir,
		cache:   c,
		tracker: tr,
		state:   StateIdle,
	}
}

// State reports whether an utterance is active.
func (s *Speaker) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Supported reports whether Speak can produce audio at all.
func (s *Speaker) Supported() error {
	if s.synth == nil || s.out == nil {
		return ErrUnsupported
	}
	if err := s.out.Available(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return nil
}

// Speak synthesizes text in lang and plays it. It blocks until playback ends.
// On natural completion onComplete runs and nil is returned. A preempted call
// returns ErrPreempted and never runs onComplete.
func (s *Speaker) Speak(ctx context.Context, text string, lang model.Language, onComplete func()) error {
	if err := s.Supported(); err != nil {
		return err
	}

	id, sctx := s.begin(ctx)

	locale := lang.Locale()
	voice := s.voices[locale]

	path, err := s.synthesize(sctx, text, voice, locale, id)
	if err != nil {
		if s.preempted(id) {
			return ErrPreempted
		}
		s.finish(id)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := CodeSynthesisFailed
		if tts.IsEngineError(err) {
			code = CodeNetwork
		}
		return &PlatformError{Code: code, Err: err}
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.session != id {
		s.mu.Unlock()
		return ErrPreempted
	}
	err = s.out.Play(path, func() { close(done) })
	s.mu.Unlock()
	if err != nil {
		s.finish(id)
		return &PlatformError{Code: CodeAudioHardware, Err: err}
	}

	select {
	case <-done:
		if !s.finish(id) {
			return ErrPreempted
		}
		if onComplete != nil {
			onComplete()
		}
		return nil
	case <-sctx.Done():
		if s.preempted(id) {
			return ErrPreempted
		}
		// Caller context ended: silence our own utterance
		s.mu.Lock()
		if s.session == id {
			s.out.Stop()
		}
		s.mu.Unlock()
		s.finish(id)
		return ctx.Err()
	}
}

// Stop cancels the active utterance, if any. Its Speak call returns ErrPreempted.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSpeaking {
		return
	}
	s.preemptLocked()
	s.state = StateIdle
	slog.Debug("Speech: stopped")
}

// Close stops playback and removes every cached audio file.
func (s *Speaker) Close() {
	s.Stop()
	for key := range s.cache.Items() {
		s.cache.Delete(key)
	}
}

func (s *Speaker) begin(ctx context.Context) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSpeaking {
		slog.Debug("Speech: preempting active utterance", "session", s.session)
		s.preemptLocked()
	}
	s.session++
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateSpeaking
	return s.session, sctx
}

// preemptLocked silences the active session and invalidates its id.
func (s *Speaker) preemptLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.out.Stop()
	s.session++
}

// finish moves the speaker to idle if id is still the active session.
func (s *Speaker) finish(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != id {
		return false
	}
	s.state = StateIdle
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *Speaker) preempted(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != id
}

func cacheKey(voice, locale, text string) string {
	sum := sha256.Sum256([]byte(voice + "|" + locale + "|" + text))
	return hex.EncodeToString(sum[:12])
}

// synthesize returns a playable file for text, reusing a cached one when possible.
func (s *Speaker) synthesize(ctx context.Context, text, voice, locale string, id uint64) (string, error) {
	key := cacheKey(voice, locale, text)
	if v, ok := s.cache.Get(key); ok {
		path := v.(string)
		if _, err := os.Stat(path); err == nil {
			s.tracker.TrackCacheHit("speech")
			return path, nil
		}
		s.cache.Delete(key)
	}
	s.tracker.TrackCacheMiss("speech")

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}

	// Unique per session so a preempted synthesis never shares a file with its successor
	base := filepath.Join(s.dir, fmt.Sprintf("%s-%d", key, id))
	start := time.Now()
	format, err := s.synth.Synthesize(ctx, text, voice, locale, base)
	if err != nil {
		removeMatching(base + ".*")
		return "", err
	}
	path := base + "." + format
	if err := tts.VerifyAudioFile(path); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	slog.Debug("Speech: synthesized", "locale", locale, "voice", voice, "path", path, "duration", time.Since(start))
	s.cache.SetDefault(key, path)
	return path, nil
}

func removeMatching(pattern string) {
	matches, _ := filepath.Glob(pattern)
	for _, m := range matches {
		_ = os.Remove(m)
	}
}
