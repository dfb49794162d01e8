package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nik312123/Orbits/internal/api"
	"github.com/nik312123/Orbits/internal/config"
	"github.com/nik312123/Orbits/internal/history"
	"github.com/nik312123/Orbits/internal/live"
	"github.com/nik312123/Orbits/internal/preset"
	"github.com/nik312123/Orbits/internal/sim"
	"github.com/nik312123/Orbits/internal/stream"
	"github.com/nik312123/Orbits/internal/tracing"
	"github.com/nik312123/Orbits/web"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	trail := history.New(cfg.History, logger)
	simulation, err := sim.New(cfg.Sim, sim.SystemClock, trail, logger)
	if err != nil {
		logger.Error("simulation setup failed", "error", err)
		os.Exit(1)
	}

	pool := preset.NewWorkerPool(cfg.Preset.Workers, logger)
	catalog := preset.NewCatalog(pool, simulation.Validate, logger)

	presetCache, err := preset.NewCache(cfg.Preset)
	if err != nil {
		logger.Warn("preset cache unavailable, continuing without it", "error", err)
	}
	fetcher := preset.NewFetcher(cfg.Preset.SourceURL, logger, cfg.Preset.ExtraSourceURLs...)
	refresher := preset.NewRefresher(cfg.Preset, fetcher, catalog, presetCache, logger)
	if err := refresher.LoadCached(); err != nil {
		logger.Info("no TLE cache found, starting without presets", "error", err)
	}

	streamHandler := stream.NewHandler(simulation, cfg.Stream, logger)
	hub := live.NewHub(simulation, cfg.Live, logger)

	srv := api.NewServer(cfg.HTTPAddr, logger, cfg.Auth, simulation, catalog, refresher, streamHandler, hub, web.Content)

	go simulation.Run(ctx)
	go hub.Run(ctx)
	go refresher.Run(ctx, cfg.PresetRefreshInterval)

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"tle_fetch_enabled", cfg.Preset.EnableFetch,
			"tracing_enabled", cfg.Tracing.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
