package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cicerone/internal/api"
	"cicerone/pkg/audio"
	"cicerone/pkg/config"
	"cicerone/pkg/db"
	"cicerone/pkg/db/maintenance"
	"cicerone/pkg/events"
	"cicerone/pkg/geo"
	"cicerone/pkg/location"
	"cicerone/pkg/location/walksim"
	"cicerone/pkg/logging"
	"cicerone/pkg/media"
	"cicerone/pkg/probe"
	"cicerone/pkg/store"
	"cicerone/pkg/subtitle"
	"cicerone/pkg/tour"
	"cicerone/pkg/tracker"
	"cicerone/pkg/version"
)

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", "configs/cicerone.yaml", "Path to config file")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Optional .env for local overrides; absence is not an error.
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Cicerone Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, dbConn, appCfg.Tours.Dir); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	// Playback
	audioMgr := audio.NewManager()
	audioMgr.SetSampleRate(appCfg.Audio.SampleRateHz)
	audioMgr.SetVolume(appCfg.Audio.Volume)
	restoreVolume(ctx, st, audioMgr)
	defer audioMgr.Shutdown()

	// Media resolution
	backoff := media.NewHostBackoff(
		time.Duration(appCfg.Media.Backoff.BaseDelay),
		time.Duration(appCfg.Media.Backoff.MaxDelay),
	)
	resolver := media.NewCacheResolver(appCfg.Media.CacheDir, appCfg.Media.Retries, backoff)
	resolver.SetTimeout(time.Duration(appCfg.Media.Timeout))

	// Subtitles
	subSync := subtitle.NewSynchronizer(audioMgr, time.Duration(appCfg.Subtitle.PollInterval), nil)
	subSync.Start(ctx)
	defer subSync.Stop()

	// Location
	sampler, pushSampler, err := initSampler(ctx, appCfg, st)
	if err != nil {
		return err
	}

	// Events
	streamH := api.NewEventStreamHandler()
	defer streamH.Close()
	dispatcher := events.NewDispatcher(
		events.LogSink{},
		logging.EventSink{},
		store.NewEventSink(st),
		streamH,
	)
	defer dispatcher.Close()

	tr := tracker.New()

	// Orchestrator
	orch := tour.New(tour.Deps{
		Sampler:   sampler,
		Driver:    audioMgr,
		Resolver:  resolver,
		Events:    dispatcher,
		Subtitles: subSync,
		Stats:     tr,
		Store:     st,
	}, tour.Options{
		AccuracyCeilingM: float64(appCfg.Geofence.AccuracyCeiling),
		Sampler: location.Options{
			MinInterval:      time.Duration(appCfg.Location.MinInterval),
			MinDisplacementM: float64(appCfg.Location.MinDisplacement),
		},
	})
	defer orch.Shutdown()

	restoreSession(ctx, st, orch)

	if err := runStartupProbes(ctx, appCfg, st); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, appCfg, orch, st, pushSampler, audioMgr, subSync, tr, dispatcher, streamH)
}

func runStartupProbes(ctx context.Context, appCfg *config.Config, st store.Store) error {
	probes := []probe.Probe{
		{
			Name:     "Tour Library",
			Critical: true,
			Check: func(c context.Context) error {
				_, err := st.ListTours(c)
				return err
			},
		},
		{
			Name: "Tours Directory",
			Check: func(context.Context) error {
				info, err := os.Stat(appCfg.Tours.Dir)
				if err != nil {
					return err
				}
				if !info.IsDir() {
					return fmt.Errorf("%s is not a directory", appCfg.Tours.Dir)
				}
				return nil
			},
		},
		{
			Name: "Media Cache",
			Check: func(context.Context) error {
				return os.MkdirAll(appCfg.Media.CacheDir, 0o755)
			},
		},
	}

	return probe.AnalyzeResults(probe.Run(ctx, probes))
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initSampler builds the configured location source. The push sampler is
// returned separately so the API server can expose the ingest endpoints;
// it is nil for the walksim provider.
func initSampler(ctx context.Context, appCfg *config.Config, st store.Store) (location.Sampler, *location.PushSampler, error) {
	switch appCfg.Location.Provider {
	case "walksim":
		route, err := walksimRoute(ctx, st)
		if err != nil {
			return nil, nil, err
		}
		w := walksim.New(walksim.Config{
			Route:       route,
			SpeedMS:     appCfg.Location.Walksim.SpeedMS,
			AccuracyM:   appCfg.Location.Walksim.AccuracyM,
			NoiseM:      appCfg.Location.Walksim.NoiseM,
			Loop:        appCfg.Location.Walksim.Loop,
			RevokeAfter: time.Duration(appCfg.Location.Walksim.RevokeAfter),
		})
		slog.Info("Location provider: walksim", "route_points", len(route))
		return w, nil, nil
	default:
		p := location.NewPushSampler()
		slog.Info("Location provider: push")
		return p, p, nil
	}
}

// walksimRoute walks the first stored tour so the simulated pedestrian
// actually crosses the geofences.
func walksimRoute(ctx context.Context, st store.Store) ([]geo.Point, error) {
	tours, err := st.ListTours(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tours for walksim route: %w", err)
	}
	if len(tours) == 0 {
		slog.Warn("Walksim: no tours in library, walker will stand still")
		return nil, nil
	}

	sort.Slice(tours, func(i, j int) bool { return tours[i].ID < tours[j].ID })
	t := tours[0]
	route := make([]geo.Point, 0, len(t.Waypoints))
	for _, wp := range t.Waypoints {
		route = append(route, geo.Point{Lat: wp.Lat, Lon: wp.Lon})
	}
	slog.Info("Walksim: routing along tour", "tour_id", t.ID, "waypoints", len(route))
	return route, nil
}

func restoreVolume(ctx context.Context, st store.Store, audioMgr *audio.Manager) {
	volStr, _ := st.GetState(ctx, "volume")
	if volStr == "" {
		return
	}
	var val float64
	if _, err := fmt.Sscanf(volStr, "%f", &val); err == nil {
		audioMgr.SetVolume(val)
	}
}

// restoreSession resumes the latest non-terminal session, if any. Failure
// is logged, not fatal; a fresh session can always be started.
func restoreSession(ctx context.Context, st store.Store, orch *tour.Orchestrator) {
	snap, err := st.LatestActiveSession(ctx)
	if err != nil {
		slog.Error("Session restore: lookup failed", "error", err)
		return
	}
	if snap == nil {
		return
	}

	t, err := st.GetTour(ctx, snap.TourID)
	if err != nil || t == nil {
		slog.Warn("Session restore: tour unavailable", "tour_id", snap.TourID, "error", err)
		return
	}

	if err := orch.Restore(ctx, t, *snap); err != nil {
		slog.Warn("Session restore failed", "session_id", snap.SessionID, "error", err)
		return
	}
	slog.Info("Session restored", "session_id", snap.SessionID, "tour_id", snap.TourID, "expected_index", snap.ExpectedIndex)
}

func runServer(ctx context.Context, cfg *config.Config, orch *tour.Orchestrator, st store.Store, pushSampler *location.PushSampler, audioMgr *audio.Manager, subSync *subtitle.Synchronizer, tr *tracker.Tracker, dispatcher *events.Dispatcher, streamH *api.EventStreamHandler) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewSessionHandler(orch, st, st),
		api.NewTourHandler(st),
		api.NewLocationHandler(pushSampler, orch),
		api.NewAudioHandler(audioMgr, orch, st, time.Duration(cfg.Audio.SeekStep)),
		api.NewSubtitleHandler(subSync),
		api.NewStatsHandler(tr, dispatcher),
		streamH,
		shutdownFunc,
	)

	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
