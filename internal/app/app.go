// Package app initializes and holds the long-lived services the CLI
// commands share, acting as a small dependency injection container.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/batch"
	"github.com/mbellhart/crawlcache/internal/cache"
	"github.com/mbellhart/crawlcache/internal/clock/system"
	"github.com/mbellhart/crawlcache/internal/config"
	"github.com/mbellhart/crawlcache/internal/engine"
	"github.com/mbellhart/crawlcache/internal/executor"
	"github.com/mbellhart/crawlcache/internal/hash/sha256"
	"github.com/mbellhart/crawlcache/internal/id/uuid"
	"github.com/mbellhart/crawlcache/internal/logging"
	"github.com/mbellhart/crawlcache/internal/metrics"
	"github.com/mbellhart/crawlcache/internal/scrape"
)

// App wires the executor, coordinator, and cache from configuration.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Cache       scrape.Cache
	Executor    *executor.Executor
	Coordinator *batch.Coordinator
}

// New builds the full service graph. It fails fast when the cache directory
// or engine configuration is unusable.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	store, err := cache.New(cfg.Cache, sha256.New(), system.New(), logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	runner, err := engine.New(cfg.Engine, logger.Named("engine"))
	if err != nil {
		return nil, fmt.Errorf("init engine runner: %w", err)
	}

	exec := executor.New(runner, cfg.FetchTimeout(), logger.Named("executor"))
	coord := batch.New(runner, store, uuid.New(), cfg.BatchTimeout(), cfg.Batch.MaxURLs, logger.Named("batch"))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Cache:       store,
		Executor:    exec,
		Coordinator: coord,
	}, nil
}

// Close flushes buffered log output.
func (a *App) Close() {
	_ = a.Logger.Sync()
}
