// Command paplayer is the remote announcement player. It follows a stationpa
// server, speaks every pending record on the local sound device and reports
// the outcome back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stationpa/pkg/audio"
	"stationpa/pkg/client"
	"stationpa/pkg/config"
	"stationpa/pkg/db/maintenance"
	"stationpa/pkg/logging"
	"stationpa/pkg/playback"
	"stationpa/pkg/probe"
	"stationpa/pkg/speech"
	"stationpa/pkg/tracker"
	"stationpa/pkg/tts"
	"stationpa/pkg/version"
)

var (
	configPath = flag.String("config", "configs/stationpa.yaml", "Path to the configuration file")
	serverURL  = flag.String("server", "", "Announcement server URL (overrides player.server_url)")
)

func main() {
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Player failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path, server string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if server != "" {
		cfg.Player.ServerURL = server
	}

	cleanupLogs, err := logging.Init(&cfg.Log, &cfg.History)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	tts.SetLogPath(cfg.History.TTS.Path)
	tts.SetEnabled(cfg.History.TTS.Enabled)

	slog.Info("PA Player Started", "version", version.Version, "server", cfg.Player.ServerURL, "engine", cfg.TTS.Engine)

	tr := tracker.New()
	remote := client.New(cfg.Player.ServerURL, tr)

	synth, err := speech.NewSynthesizer(&cfg.TTS, tr)
	if err != nil {
		return fmt.Errorf("failed to initialize TTS provider: %w", err)
	}
	audioMgr := audio.New(&cfg.Speech)
	defer audioMgr.Close()

	spk := speech.New(synth, audioMgr, &cfg.Speech, cfg.TTS.Voices, tr)
	defer spk.Close()

	maintenance.Run(ctx, nil, 0, cfg.Speech.CacheDir, time.Duration(cfg.Speech.CacheTTL))

	results := probe.Run(ctx, []probe.Probe{
		{Name: "Announcement Server", Check: probe.ServerCheck(remote), Critical: true},
		{Name: "Audio Cache", Check: probe.WritableDirCheck(cfg.Speech.CacheDir), Critical: true},
		{Name: "Audio Device", Check: probe.AvailableCheck(audioMgr), Critical: false},
	})
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	agent := playback.NewAgent(remote, spk, remote.Stream, &cfg.Player)
	return agent.Run(ctx)
}
