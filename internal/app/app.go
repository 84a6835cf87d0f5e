// Package app 根据配置装配存储、锁、排班服务与 HTTP 处理器
package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/paiban/nurseshift/internal/auth"
	"github.com/paiban/nurseshift/internal/config"
	"github.com/paiban/nurseshift/internal/database"
	"github.com/paiban/nurseshift/internal/handler"
	"github.com/paiban/nurseshift/internal/memstore"
	"github.com/paiban/nurseshift/internal/metrics"
	"github.com/paiban/nurseshift/internal/repository"
	"github.com/paiban/nurseshift/internal/security"
	"github.com/paiban/nurseshift/pkg/lock"
	"github.com/paiban/nurseshift/pkg/logger"
	"github.com/paiban/nurseshift/pkg/override"
	"github.com/paiban/nurseshift/pkg/priority"
	"github.com/paiban/nurseshift/pkg/report"
	"github.com/paiban/nurseshift/pkg/scheduler"
	"github.com/paiban/nurseshift/pkg/scheduler/constraint/builtin"
	"github.com/paiban/nurseshift/pkg/scheduler/engine"
	"github.com/paiban/nurseshift/pkg/scheduler/optimizer"
	"github.com/paiban/nurseshift/pkg/scheduler/resolver"
	"github.com/paiban/nurseshift/pkg/scheduler/solver"
	"github.com/paiban/nurseshift/pkg/store"
)

// App 装配后的服务
type App struct {
	Config   *config.Config
	DB       *database.DB    // memory 驱动时为空
	Memory   *memstore.Store // postgres 驱动时为空
	Redis    *goredis.Client // 未启用 Redis 时为空
	Store    store.Store
	Locker   lock.Locker
	Limiter  security.Limiter
	Registry *priority.Registry
	Resolver *resolver.Resolver
	Engine   *engine.Engine
	Override *override.Service
	Report   *report.Service
	Auth     *auth.Service
}

// New 按配置创建服务；失败时释放已打开的连接
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.UseMemoryStore() {
		a.Memory = memstore.New()
		a.Store = a.Memory
		if !cfg.IsProduction() {
			id := SeedDemo(a.Memory)
			logger.Info().Str("department_id", id.String()).Msg("内存存储已写入演示科室")
		}
	} else {
		if a.DB, err = database.New(&cfg.Database); err != nil {
			return nil, err
		}
		a.Store = repository.New(a.DB)
	}

	a.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		a.Redis, err = lock.NewRedisClient(ctx, lock.RedisOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.Locker = lock.NewRedisLocker(a.Redis)
	}
	if rl := cfg.RateLimit; rl.Requests > 0 {
		if a.Redis != nil {
			a.Limiter = security.NewRedisRateLimiter(a.Redis, rl.Requests, rl.Window)
		} else {
			a.Limiter = security.NewRateLimiter(rl.Requests, rl.Window)
		}
	}

	checks := builtin.NewManager()
	checks.OnReject(metrics.RecordRejection)

	a.Registry = priority.NewRegistry(a.Store, a.Store)
	a.Resolver = resolver.New(a.Store, a.Registry, checks)
	a.Engine = engine.New(a.Store, a.Resolver, a.Locker, engine.Config{
		Timeout:  cfg.Scheduler.GenerateTimeout,
		LockTTL:  cfg.Scheduler.LockTTL,
		LockWait: cfg.Scheduler.LockWait,
		Strategy: scheduler.Strategy(cfg.Scheduler.DefaultStrategy),
	}, solver.NewGreedySolver(), optimizer.NewAnnealingSolver(cfg.Scheduler.Annealing))
	a.Engine.SetObserver(metrics.GenerationObserver{})
	a.Override = override.New(a.Store, a.Resolver, a.Locker)
	a.Report = report.New(a.Resolver)
	a.Auth = auth.NewService(cfg.Auth)

	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Bool("redis", a.Redis != nil).
		Bool("rate_limit", a.Limiter != nil).
		Str("strategy", cfg.Scheduler.DefaultStrategy).
		Msg("服务装配完成")
	return a, nil
}

// Handler 创建 HTTP 处理器
func (a *App) Handler() *handler.Handler {
	return handler.New(handler.Deps{
		Config:   a.Config,
		Store:    a.Store,
		Registry: a.Registry,
		Resolver: a.Resolver,
		Engine:   a.Engine,
		Override: a.Override,
		Report:   a.Report,
		Auth:     a.Auth,
		Limiter:  a.Limiter,
		Health:   a.Health,
	})
}

// Health 检查数据库与 Redis，并刷新连接池指标
func (a *App) Health(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.Health(ctx); err != nil {
			return fmt.Errorf("数据库不可用: %w", err)
		}
		st := a.DB.Stats()
		metrics.SetDBConnections(st.OpenConnections, st.InUse, st.Idle)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("Redis 不可用: %w", err)
		}
	}
	return nil
}

// Close 释放连接
func (a *App) Close() {
	if l, ok := a.Limiter.(*security.RateLimiter); ok {
		l.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.WithError(err).Msg("关闭 Redis 失败")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.WithError(err).Msg("关闭数据库失败")
		}
	}
}
