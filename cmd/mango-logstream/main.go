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
	"github.com/coldbell/mango-v4-go/internal/logging"
	"github.com/coldbell/mango-v4-go/internal/logstream"
	"github.com/coldbell/mango-v4-go/internal/metrics"
	"github.com/coldbell/mango-v4-go/internal/tracestore"
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadLogStreamConfig()
	if err != nil {
		bootstrapLogger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLogger, err := logging.New("logstream", cfg.Log)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sinks logstream.MultiSink
	if cfg.DBDSN != "" {
		store, err := tracestore.Open(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("failed to open trace store", "err", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.Error("failed to close trace store", "err", closeErr)
			}
		}()
		sinks = append(sinks, store)
	}
	if cfg.PrintTraces {
		sinks = append(sinks, logstream.NewWriterSink(os.Stdout))
	}
	if len(sinks) == 0 {
		logger.Warn("no trace sink configured; traces are only counted")
	}

	reg := metrics.NewRegistry()
	follower := logstream.New(logstream.OptionsFromConfig(cfg), sinks, reg, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return follower.Run(ctx) })
	g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr, reg, logger) })
	if err := g.Wait(); err != nil {
		logger.Error("logstream exited with error", "err", err)
		os.Exit(1)
	}
}
