package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationpa/pkg/config"
	"stationpa/pkg/model"
	"stationpa/pkg/speech"
)

type fakeSource struct {
	mu        sync.Mutex
	pending   []model.Record
	announced []string
	failed    []string
}

func (s *fakeSource) Pending(ctx context.Context, limit int) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Record
	for _, r := range s.pending {
		if r.Status == model.RecordPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeSource) mark(id string, st model.RecordStatus) *model.Record {
	for i := range s.pending {
		if s.pending[i].ID == id {
			s.pending[i].Status = st
			r := s.pending[i]
			return &r
		}
	}
	return nil
}

func (s *fakeSource) MarkAnnounced(ctx context.Context, id, audioURL string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announced = append(s.announced, id)
	return s.mark(id, model.RecordAnnounced), nil
}

func (s *fakeSource) MarkFailed(ctx context.Context, id string) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return s.mark(id, model.RecordFailed), nil
}

func (s *fakeSource) outcomes() (announced, failed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.announced...), append([]string(nil), s.failed...)
}

// fakeSpeaker returns errs[text] for a message, or blocks until Stop when block is set.
type fakeSpeaker struct {
	mu          sync.Mutex
	spoken      []string
	errs        map[string]error
	unsupported error
	block       bool
	stop        chan struct{}
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{errs: map[string]error{}, stop: make(chan struct{}, 1)}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string, lang model.Language, onComplete func()) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	err, block := f.errs[text], f.block
	f.mu.Unlock()

	if block {
		select {
		case <-f.stop:
			return speech.ErrPreempted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeSpeaker) Stop() {
	select {
	case f.stop <- struct{}{}:
	default:
	}
}

func (f *fakeSpeaker) Supported() error { return f.unsupported }

func (f *fakeSpeaker) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func pending(id, msg string) model.Record {
	return model.Record{ID: id, Message: msg, Language: model.LanguageEnglish, Status: model.RecordPending}
}

func testConfig() *config.PlayerConfig {
	return &config.PlayerConfig{PollInterval: config.Duration(10 * time.Millisecond), AutoPlay: true, QueueSize: 10}
}

func TestAgent_PollAndDrain(t *testing.T) {
	src := &fakeSource{pending: []model.Record{pending("rec_1", "one"), pending("rec_2", "two"), pending("rec_3", "three")}}
	spk := newFakeSpeaker()
	spk.errs["two"] = &speech.PlatformError{Code: speech.CodeSynthesisFailed, Err: errors.New("bad")}

	a := NewAgent(src, spk, nil, testConfig())
	n, err := a.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	a.Drain(context.Background())

	announced, failed := src.outcomes()
	assert.Equal(t, []string{"rec_1", "rec_3"}, announced)
	assert.Equal(t, []string{"rec_2"}, failed)
	assert.Equal(t, []string{"one", "two", "three"}, spk.said())

	st := a.Status()
	assert.Equal(t, 2, st.Spoken)
	assert.Equal(t, 1, st.Failed)
	assert.Zero(t, st.Queued)

	// Handled records are not queued again
	n, err = a.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAgent_UnsupportedStopsAutoPlay(t *testing.T) {
	src := &fakeSource{pending: []model.Record{pending("rec_1", "one"), pending("rec_2", "two")}}
	spk := newFakeSpeaker()
	spk.errs["one"] = speech.ErrUnsupported

	a := NewAgent(src, spk, nil, testConfig())
	_, _ = a.Poll(context.Background())
	a.Drain(context.Background())

	announced, failed := src.outcomes()
	assert.Empty(t, announced)
	assert.Empty(t, failed, "unsupported speech must not fail records")
	assert.False(t, a.AutoPlay())
	assert.Equal(t, []string{"one"}, spk.said())
	assert.NotEmpty(t, a.Status().LastError)
}

func TestAgent_AutoPlayOff(t *testing.T) {
	src := &fakeSource{pending: []model.Record{pending("rec_1", "one")}}
	spk := newFakeSpeaker()
	cfg := testConfig()
	cfg.AutoPlay = false

	a := NewAgent(src, spk, nil, cfg)
	_, _ = a.Poll(context.Background())
	a.Drain(context.Background())

	assert.Empty(t, spk.said())
	assert.Equal(t, 1, a.Status().Queued)

	a.SetAutoPlay(true)
	a.Drain(context.Background())
	assert.Equal(t, []string{"one"}, spk.said())
}

func TestAgent_SkipMarksFailed(t *testing.T) {
	src := &fakeSource{pending: []model.Record{pending("rec_1", "one")}}
	spk := newFakeSpeaker()
	spk.block = true

	a := NewAgent(src, spk, nil, testConfig())
	_, _ = a.Poll(context.Background())

	done := make(chan struct{})
	go func() {
		a.Drain(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return a.Status().Current == "rec_1" }, time.Second, 5*time.Millisecond)
	assert.True(t, a.Skip())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not return after skip")
	}

	_, failed := src.outcomes()
	assert.Equal(t, []string{"rec_1"}, failed)
	assert.Equal(t, "skipped by operator", a.Status().LastError)
	assert.False(t, a.Skip(), "nothing left to skip")
}

func TestAgent_ShutdownLeavesRecordPending(t *testing.T) {
	src := &fakeSource{pending: []model.Record{pending("rec_1", "one")}}
	spk := newFakeSpeaker()
	spk.block = true

	a := NewAgent(src, spk, nil, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = a.Poll(ctx)

	done := make(chan struct{})
	go func() {
		a.Drain(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return a.Status().Current == "rec_1" }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	announced, failed := src.outcomes()
	assert.Empty(t, announced)
	assert.Empty(t, failed)
}

func TestAgent_RunWithStream(t *testing.T) {
	src := &fakeSource{}
	spk := newFakeSpeaker()
	pushed := make(chan model.Record, 1)
	stream := func(ctx context.Context) (<-chan model.Record, error) {
		return pushed, nil
	}

	a := NewAgent(src, spk, stream, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	rec := pending("rec_9", "pushed")
	src.mu.Lock()
	src.pending = append(src.pending, rec)
	src.mu.Unlock()
	pushed <- rec

	require.Eventually(t, func() bool {
		announced, _ := src.outcomes()
		return len(announced) == 1 && announced[0] == "rec_9"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, []string{"pushed"}, spk.said(), "record must be spoken exactly once")
}

func TestAgent_SkipsSettledRecords(t *testing.T) {
	a := NewAgent(&fakeSource{}, newFakeSpeaker(), nil, testConfig())

	done := pending("rec_done", "already spoken")
	done.Status = model.RecordAnnounced
	failed := pending("rec_failed", "gave up")
	failed.Status = model.RecordFailed

	assert.False(t, a.enqueue(done))
	assert.False(t, a.enqueue(failed))
	assert.True(t, a.enqueue(pending("rec_new", "fresh")))
	assert.Equal(t, 1, a.queue.Count())
}
