package speech

import (
	"fmt"

	"stationpa/pkg/config"
	"stationpa/pkg/tracker"
	"stationpa/pkg/tts"
	"stationpa/pkg/tts/edgetts"
	"stationpa/pkg/tts/sapi"
)

// NewSynthesizer returns the TTS engine named in the configuration.
// The "none" engine yields a nil provider, which makes the speaker unsupported.
func NewSynthesizer(cfg *config.TTSConfig, t *tracker.Tracker) (tts.Provider, error) {
	switch cfg.Engine {
	case "sapi", "windows-sapi":
		return sapi.NewProvider(), nil
	case "edge", "edge-tts":
		return edgetts.NewProvider(t), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tts engine: %s", cfg.Engine)
	}
}
