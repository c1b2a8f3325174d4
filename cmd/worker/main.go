package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tapiceria-erp/tapiceria-erp/internal/alerts"
	"github.com/tapiceria-erp/tapiceria-erp/internal/app"
	"github.com/tapiceria-erp/tapiceria-erp/internal/catalog"
	"github.com/tapiceria-erp/tapiceria-erp/internal/expenses"
	"github.com/tapiceria-erp/tapiceria-erp/internal/finance"
	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/observability"
	"github.com/tapiceria-erp/tapiceria-erp/internal/orders"
	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/cache"
	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/db"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
	"github.com/tapiceria-erp/tapiceria-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, digest cache stays stale until TTL", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	expensesService := expenses.NewService(expenses.NewRepository(pool), auditLogger, logger)
	materialsService := materials.NewService(materials.NewRepository(pool), auditLogger, expensesService, logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), materialsService, logger)
	ordersService := orders.NewService(orders.NewRepository(pool), catalogService, auditLogger, logger)
	loader := finance.NewLoader(materialsService, catalogService, ordersService, expensesService)

	digestCache := alerts.NewCache(redisClient, 10*time.Minute)
	digestRepo := alerts.NewDigestRepository(pool, digestCache, logger)
	digestRunner := jobs.NewDigestRunner(digestRepo, loader, digestRepo, metrics, logger)
	cleanupRunner := jobs.NewCleanupRunner(shared.NewIdempotencyStore(pool), cfg.IdempotencyTTL, metrics, logger)

	digestTask, err := jobs.NewAlertDigestTask(time.Now().UTC())
	if err != nil {
		logger.Error("build digest task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAlertDigest, Handler: digestRunner.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupRunner.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AlertsCron, Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IdempotencyCleanupCron, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
