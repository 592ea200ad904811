package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "stationpa.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.TTS.Engine != "edge-tts" {
					t.Errorf("expected default TTS engine 'edge-tts', got '%s'", cfg.TTS.Engine)
				}
				if cfg.Announcements.RecentLimit != 50 {
					t.Errorf("expected RecentLimit 50, got %d", cfg.Announcements.RecentLimit)
				}
				if time.Duration(cfg.Server.Heartbeat) != 30*time.Second {
					t.Errorf("expected heartbeat 30s, got %v", time.Duration(cfg.Server.Heartbeat))
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "engine: edge-tts") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: memory, sqlite") {
					t.Error("config file missing driver options comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("store:\n  driver: sqlite\nrules:\n  respect_disabled: true\nplayer:\n  poll_interval: 10s\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Store.Driver != "sqlite" {
					t.Errorf("expected driver 'sqlite', got '%s'", cfg.Store.Driver)
				}
				if !cfg.Rules.RespectDisabled {
					t.Error("expected RespectDisabled true")
				}
				if time.Duration(cfg.Player.PollInterval) != 10*time.Second {
					t.Errorf("expected poll interval 10s, got %v", time.Duration(cfg.Player.PollInterval))
				}
				// Unspecified values keep their defaults
				if cfg.Rules.Language != "en" {
					t.Errorf("expected default rules language 'en', got '%s'", cfg.Rules.Language)
				}
			},
		},
		{
			name: "ExistingFile_Invalid",
			setup: func() {
				_ = os.WriteFile(configPath, []byte("tts:\n  engine: [broken\n"), 0o644)
			},
			expectedError: true,
		},
		{
			name: "ExistingFile_FailsValidation",
			setup: func() {
				_ = os.WriteFile(configPath, []byte("store:\n  driver: postgres\n"), 0o644)
			},
			expectedError: true,
		},
		{
			name: "ExistingFile_BadVoiceLocale",
			setup: func() {
				_ = os.WriteFile(configPath, []byte("tts:\n  voices:\n    hindi: hi-IN-SwaraNeural\n"), 0o644)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if tt.expectedError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("STATIONPA_ADDR", "0.0.0.0:9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "stationpa.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Translate.Key != "from-env" {
		t.Errorf("expected key from env, got '%s'", cfg.Translate.Key)
	}
	if cfg.Server.Address != "0.0.0.0:9090" {
		t.Errorf("expected address from env, got '%s'", cfg.Server.Address)
	}
}

func TestLoad_EnvKeyNotPersisted(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")
	path := filepath.Join(t.TempDir(), "stationpa.yaml")

	if _, err := Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(content), "secret") {
		t.Error("environment secret leaked into the config file")
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stationpa.yaml")

	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	// Existing files are left alone
	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "custom: true\n" {
		t.Errorf("existing file was overwritten: %q", content)
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}
