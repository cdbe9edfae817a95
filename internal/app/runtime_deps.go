package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/salesboard/internal/analytics"
	"github.com/odyssey-erp/salesboard/internal/apiclient"
	"github.com/odyssey-erp/salesboard/internal/platform/cache"
	"github.com/odyssey-erp/salesboard/internal/platform/db"
	"github.com/odyssey-erp/salesboard/internal/sales"
)

// Deps bundles the clients shared by the server and the worker.
type Deps struct {
	Redis   *redis.Client
	Pool    *pgxpool.Pool
	Service *analytics.Service
}

// Bootstrap connects the configured source and cache and builds the analytics service.
// An unreachable Redis disables caching instead of failing startup.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, recorder analytics.Recorder) (*Deps, error) {
	deps := &Deps{}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, view cache disabled", slog.Any("error", err))
	} else {
		deps.Redis = redisClient
	}

	source, err := deps.source(ctx, cfg, logger)
	if err != nil {
		deps.Close(logger)
		return nil, err
	}

	opts := []analytics.Option{analytics.WithLogger(logger)}
	if recorder != nil {
		opts = append(opts, analytics.WithRecorder(recorder))
	}
	deps.Service = analytics.NewService(source, analytics.NewCache(deps.Redis, cfg.CacheTTL), opts...)
	return deps, nil
}

func (d *Deps) source(ctx context.Context, cfg *Config, logger *slog.Logger) (analytics.Source, error) {
	switch cfg.SourceMode {
	case SourcePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: "salesboard"})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.Pool = pool
		return sales.NewRepository(pool, logger, cfg.SourceLookback), nil
	default:
		client := apiclient.NewClient(apiclient.Config{
			BaseURL: cfg.SourceBaseURL,
			Token:   cfg.SourceToken,
			Timeout: cfg.SourceTimeout,
			Retries: cfg.SourceRetries,
		}, &http.Client{}, logger)
		return client, nil
	}
}

// Close releases every client that was opened.
func (d *Deps) Close(logger *slog.Logger) {
	if d == nil {
		return
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
