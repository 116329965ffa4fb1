package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ffarm/internal/bootstrap"
	"ffarm/internal/config"
	"ffarm/internal/farm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("open store failed", "store", cfg.Store.Kind, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	catalog, err := bootstrap.LoadCatalog(ctx, store, cfg.Store.SeedCatalog)
	if err != nil {
		logger.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	notifier, err := bootstrap.Notifier(cfg.DiscordToken, logger)
	if err != nil {
		logger.Error("notifier init failed", "err", err)
		os.Exit(1)
	}

	svc := bootstrap.Service(store, catalog, notifier, cfg.Rules, logger)
	scheduler := farm.NewScheduler(svc, cfg.SweepEvery, logger)

	if cfg.RunOnce {
		if _, err := scheduler.Tick(ctx, 1); err != nil {
			closeStore()
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	go bootstrap.RefreshCatalog(ctx, catalog, store, cfg.Store.CatalogRefreshEvery, logger)
	scheduler.Run(ctx)
	logger.Info("worker shutdown")
}
