package tts_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"stationpa/pkg/tracker"
	"stationpa/pkg/tts"
	"stationpa/pkg/tts/edgetts"
	"stationpa/pkg/tts/sapi"
)

// Live engine checks; set STATIONPA_TTS_LIVE=1 (and the EDGE_TTS_* variables for edge).
func liveEngines(t *testing.T) map[string]tts.Provider {
	t.Helper()
	if os.Getenv("STATIONPA_TTS_LIVE") == "" {
		t.Skip("set STATIONPA_TTS_LIVE=1 to exercise real speech engines")
	}
	engines := map[string]tts.Provider{"edge": edgetts.NewProvider(tracker.New())}
	if runtime.GOOS == "windows" {
		engines["sapi"] = sapi.NewProvider()
	}
	return engines
}

func TestLive_Synthesize(t *testing.T) {
	phrases := []struct{ locale, text string }{
		{"en-IN", "Boarding has started for train number 12347 on platform 3."},
		{"hi-IN", "ट्रेन संख्या 12346 लगभग 15 मिनट की देरी से है"},
		{"ta-IN", "ரயில் எண் 12345 நடைமேடை 2 இல் வருகிறது"},
	}
	for name, engine := range liveEngines(t) {
		for _, p := range phrases {
			t.Run(name+"/"+p.locale, func(t *testing.T) {
				base := filepath.Join(t.TempDir(), "live")
				format, err := engine.Synthesize(context.Background(), p.text, "", p.locale, base)
				if err != nil {
					t.Fatalf("synthesis failed: %v", err)
				}
				if err := tts.VerifyAudioFile(base + "." + format); err != nil {
					t.Error(err)
				}
			})
		}
	}
}

func TestLive_Voices(t *testing.T) {
	for name, engine := range liveEngines(t) {
		voices, err := engine.Voices(context.Background())
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		for _, v := range voices {
			t.Logf("%s: %s %q (%s)", name, v.ID, v.Name, v.Language)
		}
	}
}
