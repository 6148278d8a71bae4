package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ultramarket/inventory-core/internal/alerts"
	"github.com/ultramarket/inventory-core/internal/audit"
	"github.com/ultramarket/inventory-core/internal/consistency"
	"github.com/ultramarket/inventory-core/internal/cron"
	"github.com/ultramarket/inventory-core/internal/inventory"
	"github.com/ultramarket/inventory-core/internal/locks"
	"github.com/ultramarket/inventory-core/pkg/config"
	"github.com/ultramarket/inventory-core/pkg/db"
	"github.com/ultramarket/inventory-core/pkg/logger"
	"github.com/ultramarket/inventory-core/pkg/metrics"
	"github.com/ultramarket/inventory-core/pkg/migrate"
	"github.com/ultramarket/inventory-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "consistency-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "consistency-worker"

	logg = logger.New(logger.Options{
		ServiceName: "consistency-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	lockSvc, err := locks.NewService(locks.NewRepository(dbClient.DB()), logg, cfg.Locks.TTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock service", err)
		os.Exit(1)
	}
	auditSvc, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}
	inventoryRepo := inventory.NewRepository(dbClient.DB())

	logSink, err := alerts.NewLogSink(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create alert sink", err)
		os.Exit(1)
	}
	dispatcher, err := alerts.NewDispatcher(logSink, logg, cfg.Alerts.BufferSize)
	if err != nil {
		logg.Error(context.Background(), "failed to create alert dispatcher", err)
		os.Exit(1)
	}

	checker, err := consistency.NewChecker(inventoryRepo, locks.NewRepository(dbClient.DB()), dispatcher, logg, cfg.Consistency)
	if err != nil {
		logg.Error(context.Background(), "failed to create consistency checker", err)
		os.Exit(1)
	}
	resolver, err := consistency.NewResolver(dbClient, inventoryRepo, auditSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create discrepancy resolver", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	reaperJob, err := cron.NewLockReaperJob(cron.LockReaperJobParams{Logger: logg, Locks: lockSvc})
	if err != nil {
		logg.Error(context.Background(), "failed to create lock reaper job", err)
		os.Exit(1)
	}
	checkJob, err := cron.NewConsistencyCheckJob(cron.ConsistencyCheckJobParams{
		Logger:   logg,
		Checker:  checker,
		Resolver: resolver,
		AutoFix:  cfg.Consistency.AutoFix,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create consistency check job", err)
		os.Exit(1)
	}

	baseLockKey := redisClient.WorkerLockKey(cfg.App.Env)

	reaperLock, err := cron.NewRedisLock(redisClient, baseLockKey+":reaper", cfg.Locks.ReaperInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper run lock", err)
		os.Exit(1)
	}
	reaperSvc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reaperJob),
		Lock:     reaperLock,
		Metrics:  jobMetrics,
		Interval: cfg.Locks.ReaperInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reaper service", err)
		os.Exit(1)
	}

	checkLock, err := cron.NewRedisLock(redisClient, baseLockKey+":consistency", cfg.Consistency.Interval)
	if err != nil {
		logg.Error(context.Background(), "failed to create consistency run lock", err)
		os.Exit(1)
	}
	checkSvc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(checkJob),
		Lock:     checkLock,
		Metrics:  jobMetrics,
		Interval: cfg.Consistency.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create consistency service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting consistency worker")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := reaperSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "lock reaper loop stopped unexpectedly", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := checkSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "consistency loop stopped unexpectedly", err)
		}
	}()

	wg.Wait()
	logg.Info(ctx, "consistency worker shutting down gracefully")
}
