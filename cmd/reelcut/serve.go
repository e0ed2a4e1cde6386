package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	goruntime "runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/reelcut/internal/api"
	"github.com/heimdex/reelcut/internal/config"
	"github.com/heimdex/reelcut/internal/library"
	"github.com/heimdex/reelcut/internal/playback"
	"github.com/heimdex/reelcut/internal/ui"
)

var serveHeadless bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API server and menu bar tray",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "run without the system tray (also REELCUT_HEADLESS)")
}

func serve() error {
	startTime := time.Now()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger
	logger.Info("starting reelcut", "version", config.Version, "data_dir", cfg.DataDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deviceID, err := library.EnsureConfig(ctx, rt.repo, library.ConfigDeviceID, func() (string, error) {
		return library.RandomHex(16)
	})
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := library.EnsureConfig(ctx, rt.repo, library.ConfigAuthToken, func() (string, error) {
		return library.RandomHex(32)
	})
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                      REELCUT v%-27s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
	if tc := rt.checkToolchain(probeCtx); tc == nil || !tc.Ready() {
		logger.Warn("ffmpeg toolchain incomplete, exports will fail until it is installed")
	}
	probeCancel()

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Planner:        rt.planner,
		Exporter:       rt.orch,
		Library:        rt.library,
		Tokens:         rt.repo,
		PlaybackServer: playback.NewServer(cfg.ExportsDir(), logger),
		Doctor:         rt.doctor,
		WorkDir:        cfg.WorkDir(),
		BaseContext:    ctx,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() || serveHeadless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Exports: rt.orch,
			Library: rt.library,
			Logger:  logger,
			OnOpenExports: func() error {
				return openFolder(cfg.ExportsDir())
			},
			OnQuit: quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	if h := rt.orch.Current(); h != nil && rt.orch.Busy() {
		logger.Info("cancelling running export", "export_id", h.ID())
		h.Cancel()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if h := rt.orch.Current(); h != nil {
		if _, err := h.Wait(shutdownCtx); err != nil {
			logger.Warn("export did not stop before shutdown", "export_id", h.ID())
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// openFolder shows dir in the platform file manager.
func openFolder(dir string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		cmd = exec.Command("xdg-open", dir)
	}
	return cmd.Start()
}
