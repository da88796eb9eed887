package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/coldbell/mango-v4-go/internal/config"
	"github.com/coldbell/mango-v4-go/internal/keeper"
	"github.com/coldbell/mango-v4-go/internal/logging"
	"github.com/coldbell/mango-v4-go/internal/metrics"
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadCrankConfig()
	if err != nil {
		bootstrapLogger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLogger, err := logging.New("crank", cfg.Log)
	if err != nil {
		bootstrapLogger.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeLogger(); closeErr != nil {
			bootstrapLogger.Error("failed to close logger", "err", closeErr)
		}
	}()

	if source, sourceErr := config.CurrentConfigSource(); sourceErr == nil {
		logger.Info("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded)
	}

	reg := metrics.NewRegistry()
	svc, err := keeper.New(cfg, logger, reg)
	if err != nil {
		logger.Error("failed to initialize crank service", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr, reg, logger) })
	if err := g.Wait(); err != nil {
		logger.Error("crank exited with error", "err", err)
		os.Exit(1)
	}
}
