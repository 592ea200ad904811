package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	"stationpa/internal/api"
	"stationpa/pkg/announcement"
	"stationpa/pkg/audio"
	"stationpa/pkg/broadcast"
	"stationpa/pkg/config"
	"stationpa/pkg/db"
	"stationpa/pkg/db/maintenance"
	"stationpa/pkg/logging"
	"stationpa/pkg/model"
	"stationpa/pkg/playback"
	"stationpa/pkg/probe"
	"stationpa/pkg/speech"
	"stationpa/pkg/store"
	"stationpa/pkg/tracker"
	"stationpa/pkg/trains"
	"stationpa/pkg/translate"
	"stationpa/pkg/tts"
	"stationpa/pkg/version"
)

const defaultConfigPath = "configs/stationpa.yaml"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(defaultConfigPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: " + defaultConfigPath)
		return
	}

	// .env is optional
	_ = godotenv.Load()

	if err := run(context.Background(), defaultConfigPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log, &appCfg.History)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	// Configure History Logging
	tts.SetLogPath(appCfg.History.TTS.Path)
	tts.SetEnabled(appCfg.History.TTS.Enabled)

	slog.Info("Station PA Started", "version", version.Version, "store", appCfg.Store.Driver)

	dbConn, st, err := initStore(ctx, appCfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tr := tracker.New()
	hub := broadcast.NewHub(tr)
	svc := initAnnouncements(ctx, appCfg, st, hub, tr)
	registry := trains.NewRegistry(st, announcement.NewRuleEngine(svc, &appCfg.Rules))

	probes := []probe.Probe{
		{Name: "Store", Check: probe.StoreCheck(st), Critical: true},
	}

	handlers := api.Handlers{
		Announcements: api.NewAnnouncementHandler(svc),
		Trains:        api.NewTrainHandler(registry),
		Stream:        api.NewStreamHandler(hub, svc, time.Duration(appCfg.Server.Heartbeat)),
		Stats:         api.NewStatsHandler(tr, hub),
	}

	if appCfg.Player.Embedded {
		player, audioMgr, spk, err := initPlayer(appCfg, svc, hub, tr)
		if err != nil {
			return err
		}
		defer spk.Close()
		defer audioMgr.Close()

		maintenance.Run(ctx, dbConn, time.Duration(appCfg.Store.Retention), appCfg.Speech.CacheDir, time.Duration(appCfg.Speech.CacheTTL))
		probes = append(probes,
			probe.Probe{Name: "Audio Cache", Check: probe.WritableDirCheck(appCfg.Speech.CacheDir), Critical: false},
			probe.Probe{Name: "Speech Output", Check: func(context.Context) error { return spk.Supported() }, Critical: false},
		)
		handlers.Player = api.NewPlayerHandler(audioMgr, player, st)
		handlers.Player.Restore(ctx)
		go func() {
			if err := player.Run(ctx); err != nil {
				slog.Error("Playback agent failed", "error", err)
			}
		}()
	} else {
		maintenance.Run(ctx, dbConn, time.Duration(appCfg.Store.Retention), "", 0)
	}

	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, appCfg, handlers)
}

// initStore opens the configured backend and seeds it. The returned *db.DB is
// nil for the memory store.
func initStore(ctx context.Context, cfg *config.Config) (*db.DB, store.Store, error) {
	var dbConn *db.DB
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		var err error
		dbConn, err = db.Init(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		st = store.NewSQLiteStore(dbConn)
	default:
		st = store.NewMemoryStore()
	}

	if err := store.Seed(ctx, st); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to seed store: %w", err)
	}
	return dbConn, st, nil
}

func initAnnouncements(ctx context.Context, cfg *config.Config, st store.Store, hub *broadcast.Hub, tr *tracker.Tracker) *announcement.Service {
	svc := announcement.NewService(st, st, hub, tr)
	svc.SetRecentLimit(cfg.Announcements.RecentLimit)

	if cfg.Translate.Enabled {
		t, err := translate.New(ctx, &cfg.Translate, tr)
		if err != nil {
			// Templates still work; missing variants fall back to English.
			slog.Warn("Template translation unavailable", "error", err)
		} else {
			svc.SetTranslator(t)
			slog.Info("Template translation enabled", "model", cfg.Translate.Model)
		}
	}
	return svc
}

// initPlayer builds the in-process playback agent. It reads the service
// directly and follows the hub instead of going through HTTP.
func initPlayer(cfg *config.Config, svc *announcement.Service, hub *broadcast.Hub, tr *tracker.Tracker) (*playback.Agent, *audio.Manager, *speech.Speaker, error) {
	synth, err := speech.NewSynthesizer(&cfg.TTS, tr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize TTS provider: %w", err)
	}
	audioMgr := audio.New(&cfg.Speech)
	spk := speech.New(synth, audioMgr, &cfg.Speech, cfg.TTS.Voices, tr)

	stream := func(ctx context.Context) (<-chan model.Record, error) {
		return hub.Records(ctx, cfg.Player.QueueSize), nil
	}
	return playback.NewAgent(svc, spk, stream, &cfg.Player), audioMgr, spk, nil
}

func runServer(ctx context.Context, cfg *config.Config, h api.Handlers) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address, h, shutdownFunc)
	if d := time.Duration(cfg.Server.ReadTimeout); d > 0 {
		srv.ReadTimeout = d
	}
	srv.Handler = loggingMiddleware(srv.Handler)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}
	return runServerLifecycle(ctx, srv, ln, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, ln net.Listener, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", ln.Addr().String())
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
