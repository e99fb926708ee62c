package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agrimacro/agrimacro/internal/audit"
	"github.com/agrimacro/agrimacro/internal/cache"
	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/pipeline"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/pkg/config"
	"github.com/agrimacro/agrimacro/pkg/database"
	"github.com/agrimacro/agrimacro/pkg/logger"
	"github.com/agrimacro/agrimacro/pkg/metrics"
	"github.com/agrimacro/agrimacro/pkg/redis"
)

// redisPrefix namespaces every cache and rate limit key
const redisPrefix = "agrimacro"

// app holds the wired dependencies shared by run, serve and schedule
// ⭐ SSOT: 의존성 조립은 newApp 에서만
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	paths    paths.Paths
	reg      *registry.Registry
	regHash  string
	metrics  *metrics.Recorder
	archive  audit.Archive
	executor *pipeline.Executor

	closers []func()
}

// newApp loads config, registry and optional backends, then builds the executor
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, paths: paths.New(cfg.DataDir)}

	// 2. Initialize logger (stdout + logs/{date}_pipeline.log)
	log := logger.New(cfg)
	if err := a.paths.Ensure(); err != nil {
		return nil, fmt.Errorf("create data layout: %w", err)
	}
	logPath := a.paths.LogFile(time.Now().Format(contracts.DateLayout), "pipeline.log")
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err != nil {
		log.WithError(err).Warn("Failed to open run log file, logging to stdout only")
	} else {
		log = log.Tee(f)
		a.closers = append(a.closers, func() { f.Close() })
	}
	a.log = log

	// 3. Load registry (스키마 에러는 실행 중단)
	reg, _, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load registry: %w", err)
	}
	for _, w := range registry.Warn(reg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	a.reg = reg
	if a.regHash, err = registry.Hash(reg); err != nil {
		a.Close()
		return nil, fmt.Errorf("hash registry: %w", err)
	}

	// 4. Redis (disabled 이면 no-op 클라이언트)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { rc.Close() })

	var limiter *redis.RateLimiter
	if rc.Enabled() {
		limiter = redis.NewRateLimiter(rc, redisPrefix)
		log.Info("Connected to redis (cache mirror + shared rate limit)")
	}

	// 5. Optional run archive
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		repo := audit.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure archive schema: %w", err)
		}
		a.archive = repo
		log.Info("Connected to run archive database")
	}

	// 6. Collection
	store := cache.New(a.paths, redis.NewCache(rc, redisPrefix), log)
	runner := collector.NewRunner(a.paths, store, cfg.Collect, log)
	factory := pipeline.NewFactory(cfg, reg, limiter, log)

	// 7. Executor
	a.executor = pipeline.NewExecutor(a.paths, reg, runner, factory.Adapters(), factory.Generator(), log).
		WithRegistryHash(a.regHash).
		WithWorkers(cfg.Collect.Workers)
	if a.archive != nil {
		a.executor.WithArchive(a.archive)
	}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
		a.executor.WithMetrics(a.metrics)
	}

	return a, nil
}

// Close releases backends in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
