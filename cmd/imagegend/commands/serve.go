package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dreamforge/imagegen/internal/blobstore"
	"github.com/dreamforge/imagegen/internal/config"
	"github.com/dreamforge/imagegen/internal/dream"
	"github.com/dreamforge/imagegen/internal/fileref"
	"github.com/dreamforge/imagegen/internal/httpbridge"
	"github.com/dreamforge/imagegen/internal/metrics"
	"github.com/dreamforge/imagegen/internal/modeconfig"
	"github.com/dreamforge/imagegen/internal/pool"
	"github.com/dreamforge/imagegen/internal/registry"
	"github.com/dreamforge/imagegen/internal/worker"
	"github.com/dreamforge/imagegen/internal/ws"
	"github.com/dreamforge/imagegen/logger"
)

const defaultUploadMaxBytes = 32 << 20

// ServeCmd starts the worker pool, WS hub, and HTTP bridge as a single
// process sharing one http.Server for graceful shutdown.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestration core (WS hub + HTTP bridge + worker pool)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	printStartupBanner(cfg)

	reg := registry.New()

	blobs, err := blobstore.New(cfg.Storage.BlobRoot)
	if err != nil {
		return fmt.Errorf("failed to open blob store at %s: %w", cfg.Storage.BlobRoot, err)
	}

	fileRefs := fileref.New(cfg.FileRef.FileRefTTL(), cfg.FileRef.SweepInterval())
	defer fileRefs.Stop()

	modeProvider, err := modeconfig.NewFileProvider(cfg.ModeConfig.Path, cfg.ModeConfig.CacheRoot)
	if err != nil {
		return fmt.Errorf("failed to load mode config %s: %w", cfg.ModeConfig.Path, err)
	}

	workerPool := pool.New(worker.NewSubprocessWorker, modeProvider, reg, blobs, pool.Config{
		QueueMax:   cfg.Pool.QueueMax,
		JobTimeout: cfg.Pool.JobTimeout(),
	})
	if err := workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	dreamCtl := dream.New(workerPool, dream.Config{
		DefaultIntervalMS: cfg.Dream.DefaultIntervalMS,
		MaxDuration:       time.Duration(cfg.Dream.MaxDurationHours * float64(time.Hour)),
		MinTemperature:    cfg.Dream.MinTemperature,
		MaxTemperature:    cfg.Dream.MaxTemperature,
	})

	hub := ws.NewHub(workerPool, dreamCtl, fileRefs, cfg.Server.AllowedOrigins)
	go hub.Run()

	bridge := httpbridge.New(workerPool, blobs, fileRefs, modeProvider, defaultUploadMaxBytes)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	bridge.Register(e)
	if cfg.Metrics.Enabled {
		metrics.Register(e, cfg.Metrics.Path)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/ws", hub)
	mux.Handle("/", e)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	watcher, err := modeconfig.NewWatcher(cfg.ModeConfig.Path, modeProvider)
	if err != nil {
		logger.Warnw("mode config watcher disabled", "error", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	return waitForShutdown(cfg, srv, workerPool, hub, serveErr)
}

// waitForShutdown blocks until a shutdown signal or server error arrives,
// then drains the pool, hub, and HTTP server in order. A second interrupt
// during the grace period forces immediate exit.
func waitForShutdown(cfg *config.Config, srv *http.Server, workerPool *pool.Pool, hub *ws.Hub, serveErr <-chan error) error {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-sigCh:
	}

	pterm.Warning.Println("shutting down gracefully... press Ctrl+C again to force")

	done := make(chan struct{})
	go func() {
		defer close(done)
		timeout := cfg.Server.ShutdownTimeoutDuration()
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := workerPool.Shutdown(ctx); err != nil {
			logger.Warnw("worker pool shutdown error", "error", err)
		}
		hub.Stop(timeout)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warnw("http server shutdown error", "error", err)
		}
	}()

	select {
	case <-done:
		pterm.Success.Println("shutdown complete")
		return nil
	case <-sigCh:
		pterm.Error.Println("forced shutdown")
		os.Exit(1)
		return nil
	}
}
