package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/config"
	"github.com/heimdex/reelcut/internal/db"
	"github.com/heimdex/reelcut/internal/library"
	"github.com/heimdex/reelcut/internal/logging"
	"github.com/heimdex/reelcut/internal/planner"
	"github.com/heimdex/reelcut/internal/render"
)

// runtime is the wiring shared by every command.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	database *db.DB
	repo     *library.SQLiteRepository
	library  *library.Service
	prober   *render.Prober
	doctor   *render.CachedDoctor
	planner  *planner.Planner
	orch     *compose.Orchestrator
}

func newRuntime() (*runtime, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.ExportsDir(), cfg.WorkDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	level := cfg.LogLevel()
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.NewLogger(level)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repo := library.NewRepository(database.Conn())

	prober, err := render.NewProber(cfg.FFprobePath(), render.DefaultProbeCacheSize, logger)
	if err != nil {
		database.Close()
		return nil, err
	}

	defaults, err := config.LoadPlannerDefaults(cfg.DefaultsPath(), planner.DefaultConfig())
	if err != nil {
		logger.Warn("ignoring planner defaults file", "path", cfg.DefaultsPath(), "error", err)
	}
	assets := planner.Assets{
		FallbackMusic: cfg.FallbackMusicPath(),
		Bleep:         cfg.BleepPath(),
	}

	renderer := render.NewFFmpegRenderer(cfg.FFmpegPath(), logger)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		database: database,
		repo:     repo,
		library:  library.NewService(repo, cfg.ExportsDir(), logger),
		prober:   prober,
		doctor:   render.NewCachedDoctor(render.NewBinaryProbe(cfg.FFmpegPath(), cfg.FFprobePath()), logger),
		planner:  planner.New(prober, assets, defaults, logger),
		orch:     compose.NewOrchestrator(prober, renderer, logger),
	}, nil
}

func (rt *runtime) Close() error {
	return rt.database.Close()
}

// checkToolchain refreshes the doctor and logs what it found.
func (rt *runtime) checkToolchain(ctx context.Context) *render.Toolchain {
	tc, err := rt.doctor.Refresh(ctx)
	if err != nil {
		return nil
	}
	rt.logger.Info("toolchain detected",
		"ffmpeg", tc.FFmpegVersion,
		"ffprobe", tc.FFprobeVersion,
	)
	return tc
}
