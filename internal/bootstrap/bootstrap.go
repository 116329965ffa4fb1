// Package bootstrap wires the store, catalog, notifier and limiter the
// binaries share.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ffarm/internal/config"
	"ffarm/internal/db"
	"ffarm/internal/farm"
	"ffarm/internal/notify"
	"ffarm/internal/ratelimit"
	"ffarm/internal/store/memstore"
	"ffarm/internal/store/pgstore"
	"ffarm/internal/store/sqlitestore"
)

// OpenStore returns the configured store and a function that releases it.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (farm.Store, func(), error) {
	switch cfg.Kind {
	case config.StoreMemory:
		logger.Warn("using in-memory store; state is lost on exit")
		return memstore.New(), func() {}, nil
	case config.StorePostgres:
		if err := pgstore.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultPoolOptions())
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool, logger), pool.Close, nil
	case config.StoreSQLite:
		st, err := sqlitestore.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Warn("close sqlite store", "err", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

// LoadCatalog seeds the default catalog into an empty store when asked to and
// reads it back.
func LoadCatalog(ctx context.Context, store farm.CatalogStore, seed bool) (*farm.Catalog, error) {
	if seed {
		if err := store.SeedCatalog(ctx, farm.DefaultPlants(), farm.DefaultUpgrades()); err != nil {
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	catalog, err := farm.LoadCatalog(ctx, store)
	if err != nil {
		return nil, err
	}
	if len(catalog.Plants()) == 0 {
		return nil, fmt.Errorf("catalog has no plants")
	}
	return catalog, nil
}

// RefreshCatalog reloads the catalog from the store every period until ctx
// ends. A failed reload keeps the previous tables.
func RefreshCatalog(ctx context.Context, catalog *farm.Catalog, store farm.CatalogSource, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := catalog.Reload(ctx, store); err != nil {
				logger.Error("catalog refresh failed", "err", err)
				continue
			}
			logger.Debug("catalog refreshed", "plants", len(catalog.Plants()))
		}
	}
}

// Notifier always logs notifications and also sends Discord direct messages
// when a bot token is configured.
func Notifier(discordToken string, logger *slog.Logger) (farm.Notifier, error) {
	sinks := notify.Fanout{notify.NewLogSink(logger)}
	if discordToken != "" {
		discord, err := notify.NewDiscordSink(discordToken, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, discord)
		logger.Info("discord notifications enabled")
	}
	return sinks, nil
}

// Limiter shares counters through Redis when redisURL is set and keeps them
// in process memory otherwise.
func Limiter(ctx context.Context, redisURL string, limit int64, window time.Duration, logger *slog.Logger) (*ratelimit.Limiter, func(), error) {
	if redisURL == "" {
		return ratelimit.NewMemory(limit, window, logger), func() {}, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	lim := ratelimit.NewRedis(client, limit, window, logger)
	logger.Info("rate limiter backed by redis", "addr", opt.Addr)
	return lim, func() { _ = client.Close() }, nil
}

// Service builds the farm service with the production clock and random
// harvest events.
func Service(store farm.Store, catalog *farm.Catalog, notifier farm.Notifier, rules farm.Rules, logger *slog.Logger) *farm.Service {
	return farm.NewService(store, catalog, logger,
		farm.WithRules(rules),
		farm.WithNotifier(notifier),
		farm.WithEventSource(farm.NewRandomEvents(time.Now().UnixNano())),
	)
}
