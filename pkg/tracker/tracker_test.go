package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	subject := "train_delay"

	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackCreated(subject)
	tr.TrackCreated(subject)
	tr.TrackAnnounced(subject)
	tr.TrackFailed(subject)
	tr.TrackCacheHit("edge-tts")
	tr.TrackCacheMiss("edge-tts")
	tr.TrackAPISuccess("edge-tts")
	tr.TrackAPIFailure("gemini")
	tr.TrackDropped("broadcast")

	stats = tr.Snapshot()
	s, ok := stats[subject]
	if !ok {
		t.Fatalf("Expected stats for %s", subject)
	}
	if s.Created != 2 || s.Announced != 1 || s.Failed != 1 {
		t.Errorf("unexpected lifecycle counters: %+v", s)
	}
	if e := stats["edge-tts"]; e.CacheHits != 1 || e.CacheMisses != 1 || e.APISuccess != 1 {
		t.Errorf("unexpected provider counters: %+v", e)
	}
	if stats["gemini"].APIFailures != 1 {
		t.Errorf("expected 1 gemini failure")
	}
	if stats["broadcast"].Dropped != 1 {
		t.Errorf("expected 1 dropped subscriber")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackCreated("custom")
		}()
	}
	wg.Wait()
	if got := tr.Snapshot()["custom"].Created; got != 50 {
		t.Errorf("expected 50, got %d", got)
	}
}

func TestTracker_Nil(t *testing.T) {
	var tr *Tracker
	tr.TrackCreated("x")
	if len(tr.Snapshot()) != 0 {
		t.Error("nil tracker should report nothing")
	}
}
