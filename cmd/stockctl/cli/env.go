package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/odyssey-erp/stockroom/internal/analytics"
	"github.com/odyssey-erp/stockroom/internal/app"
	"github.com/odyssey-erp/stockroom/internal/importer"
	"github.com/odyssey-erp/stockroom/internal/platform/cache"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

var logOutput io.Writer = os.Stderr

func newLogger(cfg *app.Config) *slog.Logger {
	return app.NewLoggerTo(cfg, logOutput)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// DefaultEnv connects to the services named by the environment.
func DefaultEnv() Env {
	return Env{OpenImporter: openImporter, OpenJobs: openJobs}
}

func openImporter(ctx context.Context) (Importer, io.Closer, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}

	var invalidator importer.Invalidator
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("analytics cache unavailable, skipping invalidation", slog.Any("error", err))
	} else {
		invalidator = analytics.NewService(analytics.NewRepository(pool), analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL))
	}

	svc := importer.NewService(
		importer.NewRepository(pool),
		importer.Config{BuyerAccount: cfg.ImportBuyerAccount},
		nil,
		invalidator,
		shared.NewAuditLogger(pool),
		nil,
		logger,
	)
	return svc, closerFunc(func() error {
		pool.Close()
		if redisClient != nil {
			return redisClient.Close()
		}
		return nil
	}), nil
}

func openJobs(context.Context) (JobsBackend, io.Closer, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}
