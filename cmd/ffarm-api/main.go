package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ffarm/internal/api"
	"ffarm/internal/auth"
	"ffarm/internal/bootstrap"
	"ffarm/internal/config"
	"ffarm/internal/farm"
	"ffarm/internal/ratelimit"
	"ffarm/internal/syncq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
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
	limiter, closeLimiter, err := bootstrap.Limiter(ctx, cfg.RedisURL, cfg.RateLimit, cfg.RateWindow, logger)
	if err != nil {
		logger.Error("rate limiter init failed", "err", err)
		os.Exit(1)
	}
	defer closeLimiter()

	svc := bootstrap.Service(store, catalog, notifier, cfg.Rules, logger)
	queue := syncq.New(logger)
	gateway := auth.NewGatewayToken(cfg.GatewayToken)
	if !gateway.Enabled() {
		logger.Warn("FFARM_GATEWAY_TOKEN is empty; /v1 accepts unauthenticated requests")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		bootstrap.RefreshCatalog(ctx, catalog, store, cfg.Store.CatalogRefreshEvery, logger)
	}()
	if cfg.SchedulerEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			farm.NewScheduler(svc, cfg.SweepEvery, logger).Run(ctx)
		}()
	}

	server := api.New(logger, svc, queue, limiter, gateway)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           ratelimit.IPMiddleware(cfg.IPRateLimit, cfg.RateWindow)(server.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("ffarm api listening", "addr", cfg.Addr, "store", cfg.Store.Kind, "scheduler", cfg.SchedulerEnabled)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		stop()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
	logger.Info("ffarm api stopped")
}
