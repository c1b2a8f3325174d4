package main

import (
	"context"
	"log/slog"
	"net/http"
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
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, digest cache disabled", slog.Any("error", err))
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

	// Mutations flow through the audit chain: count the action, then
	// persist the trail.
	auditLogger := observability.NewInstrumentedAudit(shared.NewAuditLogger(dbpool), metrics)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	expensesRepo := expenses.NewRepository(dbpool)
	expensesService := expenses.NewService(expensesRepo, auditLogger, logger)

	materialsRepo := materials.NewRepository(dbpool)
	materialsService := materials.NewService(materialsRepo, auditLogger, expensesService, logger)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, materialsService, logger)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, catalogService, auditLogger, logger)

	loader := finance.NewLoader(materialsService, catalogService, ordersService, expensesService)
	alertsService := alerts.NewService(loader)
	digestCache := alerts.NewCache(redisClient, 10*time.Minute)
	digestRepo := alerts.NewDigestRepository(dbpool, digestCache, logger)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		MaterialsHandler: materials.NewHandler(logger, materialsService),
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		OrdersHandler:    orders.NewHandler(logger, ordersService),
		ExpensesHandler:  expenses.NewHandler(logger, expensesService),
		FinanceHandler:   finance.NewHandler(logger, loader),
		AlertsHandler:    alerts.NewHandler(logger, alertsService, digestRepo, jobsClient),
		Metrics:          metrics,
		Idempotency:      idempotencyStore,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
