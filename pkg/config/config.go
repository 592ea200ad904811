package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Store         StoreConfig         `yaml:"store"`
	Log           LogConfig           `yaml:"log"`
	History       HistoryConfig       `yaml:"history"`
	Rules         RulesConfig         `yaml:"rules"`
	Announcements AnnouncementsConfig `yaml:"announcements"`
	TTS           TTSConfig           `yaml:"tts"`
	Speech        SpeechConfig        `yaml:"speech"`
	Player        PlayerConfig        `yaml:"player"`
	Translate     TranslateConfig     `yaml:"translate"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address        string   `yaml:"address" validate:"required"`
	MaxConnections int      `yaml:"max_connections" validate:"gte=0"`
	Heartbeat      Duration `yaml:"heartbeat"`
	ReadTimeout    Duration `yaml:"read_timeout"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory sqlite"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
	// Retention is how long announced and failed records are kept by the sqlite backend.
	Retention Duration `yaml:"retention"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
	// Trace adds per-subscriber delivery lines at DEBUG.
	Trace bool `yaml:"trace"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// HistoryConfig holds settings for the history logs.
type HistoryConfig struct {
	TTS HistorySettings `yaml:"tts"`
}

// HistorySettings toggles a single history log.
type HistorySettings struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// RulesConfig controls the automatic announcement rules.
type RulesConfig struct {
	// Language for automatic announcements. Kept at "en" until product decides otherwise.
	Language string `yaml:"language" validate:"oneof=en hi regional"`
	// RespectDisabled suppresses automatic records when the canonical template is disabled.
	RespectDisabled bool `yaml:"respect_disabled"`
	// Templates maps a trigger type to its canonical template id.
	Templates map[string]string `yaml:"templates"`
}

// AnnouncementsConfig holds listing settings.
type AnnouncementsConfig struct {
	RecentLimit int `yaml:"recent_limit" validate:"gt=0"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine string `yaml:"engine" validate:"oneof=edge-tts windows-sapi none"`
	// Voices maps a locale (en-IN, hi-IN, ta-IN) to a provider voice id.
	Voices map[string]string `yaml:"voices"`
}

// SpeechConfig holds playback adapter settings.
type SpeechConfig struct {
	CacheDir string         `yaml:"cache_dir"`
	CacheTTL Duration       `yaml:"cache_ttl"`
	Volume   float64        `yaml:"volume" validate:"gte=0,lte=1"`
	Chime    bool           `yaml:"chime"`
	PAFilter PAFilterConfig `yaml:"pa_filter"`
}

// PAFilterConfig holds the band-pass settings emulating a station loudspeaker.
type PAFilterConfig struct {
	Enabled    bool    `yaml:"enabled"`
	LowCutoff  float64 `yaml:"low_cutoff"`
	HighCutoff float64 `yaml:"high_cutoff"`
}

// PlayerConfig holds settings for the playback agent.
type PlayerConfig struct {
	ServerURL    string   `yaml:"server_url" validate:"omitempty,url"`
	PollInterval Duration `yaml:"poll_interval"`
	Embedded     bool     `yaml:"embedded"`
	AutoPlay     bool     `yaml:"auto_play"`
	QueueSize    int      `yaml:"queue_size" validate:"gt=0"`
}

// TranslateConfig holds settings for template translation.
type TranslateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Key     string `yaml:"key"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        "localhost:8080",
			MaxConnections: 256,
			Heartbeat:      Duration(30 * time.Second),
			ReadTimeout:    Duration(15 * time.Second),
		},
		Store: StoreConfig{
			Driver:    "memory",
			Path:      "./data/stationpa.db",
			Retention: Duration(30 * 24 * time.Hour),
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		History: HistoryConfig{
			TTS: HistorySettings{
				Path:    "./logs/tts.log",
				Enabled: true,
			},
		},
		Rules: RulesConfig{
			Language:        "en",
			RespectDisabled: false,
			Templates: map[string]string{
				"train_delay":        "tpl_delay_1",
				"train_cancellation": "tpl_cancel_1",
				"platform_change":    "tpl_platform_1",
				"boarding_started":   "tpl_boarding_1",
			},
		},
		Announcements: AnnouncementsConfig{
			RecentLimit: 50,
		},
		TTS: TTSConfig{
			Engine: "edge-tts",
			Voices: map[string]string{
				"en-IN": "en-IN-NeerjaNeural",
				"hi-IN": "hi-IN-SwaraNeural",
				"ta-IN": "ta-IN-PallaviNeural",
			},
		},
		Speech: SpeechConfig{
			CacheDir: "./data/audio",
			CacheTTL: Duration(30 * time.Minute),
			Volume:   1.0,
			Chime:    true,
			PAFilter: PAFilterConfig{
				Enabled:    false,
				LowCutoff:  300,
				HighCutoff: 3400,
			},
		},
		Player: PlayerConfig{
			ServerURL:    "http://localhost:8080",
			PollInterval: Duration(5 * time.Second),
			Embedded:     false,
			AutoPlay:     true,
			QueueSize:    20,
		},
		Translate: TranslateConfig{
			Enabled: false,
			Model:   "gemini-2.5-flash-lite",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it is created with default values.
// An existing file is merged over the defaults but never written back, so user comments survive.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secrets and overrides from the environment. Values are never saved back to disk.
func applyEnv(cfg *Config) {
	if cfg.Translate.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.Translate.Key = key
		}
	}
	if addr := os.Getenv("STATIONPA_ADDR"); addr != "" {
		cfg.Server.Address = addr
	}
	if u := os.Getenv("STATIONPA_SERVER_URL"); u != "" {
		cfg.Player.ServerURL = u
	}
}

var localeKey = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// Validate checks struct constraints and the voice locale keys.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for locale := range cfg.TTS.Voices {
		if !localeKey.MatchString(locale) {
			return fmt.Errorf("invalid tts voice locale '%s': must be 'xx-YY' (e.g. 'hi-IN')", locale)
		}
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Station PA Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: edge-tts, windows-sapi, none\n${1}engine:"))

	reDriver := regexp.MustCompile(`(?m)^(\s+)driver:`)
	data = reDriver.ReplaceAll(data, []byte("${1}# Options: memory, sqlite\n${1}driver:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
