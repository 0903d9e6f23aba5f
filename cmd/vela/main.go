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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vela-pos/vela/internal/app"
	"github.com/vela-pos/vela/internal/cashier"
	"github.com/vela-pos/vela/internal/credit"
	"github.com/vela-pos/vela/internal/customers"
	"github.com/vela-pos/vela/internal/masterdata"
	"github.com/vela-pos/vela/internal/observability"
	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/platform/cache"
	"github.com/vela-pos/vela/internal/procurement"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/reports"
	"github.com/vela-pos/vela/internal/sales"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/internal/stock"
	"github.com/vela-pos/vela/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clock := shared.SystemClock{}
	auditLogger := shared.NewAuditLogger(pool, clock)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	ledger := stock.Ledger{AllowNegative: cfg.AllowNegativeStock, Clock: clock}
	metrics := observability.NewMetrics()

	masterDataRepo := masterdata.NewRepository(pool)
	masterDataService := masterdata.NewService(masterDataRepo)
	masterDataHandler := masterdata.NewHandler(logger, masterDataService)

	stockRepo := stock.NewRepository(pool, ledger)
	stockService := stock.NewService(stockRepo, auditLogger)
	stockHandler := stock.NewHandler(logger, stockService)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService)

	policyStore := credit.NewPolicyStore(pool)
	if err := policyStore.SeedDefaults(ctx); err != nil {
		logger.Error("seed credit policies", slog.Any("error", err))
		os.Exit(1)
	}

	var alerts credit.AlertSink
	if redisClient != nil {
		alerts = credit.NewRedisAlertSink(redisClient, cfg.CreditAlertChannel, logger)
	} else {
		alerts = credit.NewLogAlertSink(logger)
	}

	engine := credit.NewEngine(policyStore, clock)
	creditRepo := credit.NewRepository(pool, clock)
	creditService := credit.NewService(logger, creditRepo, engine, policyStore, alerts, redisClient, cfg.ReportCacheTTL, clock)
	creditHandler := credit.NewHandler(logger, creditService)

	salesRepo := sales.NewRepository(pool, ledger, credit.Store{}, clock)
	salesService := sales.NewService(logger, salesRepo, engine, alerts, idempotencyStore, metrics, clock)
	salesHandler := sales.NewHandler(salesService)

	receivablesRepo := receivables.NewRepository(pool, clock)
	receivablesService := receivables.NewService(logger, receivablesRepo, engine, creditService, alerts, clock)
	receivablesHandler := receivables.NewHandler(logger, receivablesService)

	payablesRepo := payables.NewRepository(pool, clock)
	payablesService := payables.NewService(logger, payablesRepo, clock)
	payablesHandler := payables.NewHandler(payablesService)

	cashierRepo := cashier.NewRepository(pool, clock)
	cashierService := cashier.NewService(logger, cashierRepo, auditLogger, clock)
	cashierHandler := cashier.NewHandler(cashierService)

	procurementRepo := procurement.NewRepository(pool, ledger, clock)
	procurementService := procurement.NewService(logger, procurementRepo, auditLogger, clock)
	procurementHandler := procurement.NewHandler(procurementService)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(logger, reportsRepo, redisClient, cfg.ReportCacheTTL, clock)
	reportsHandler := reports.NewHandler(reportsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		Pool:               pool,
		MasterDataHandler:  masterDataHandler,
		StockHandler:       stockHandler,
		CustomersHandler:   customersHandler,
		CreditHandler:      creditHandler,
		SalesHandler:       salesHandler,
		ReceivablesHandler: receivablesHandler,
		PayablesHandler:    payablesHandler,
		CashierHandler:     cashierHandler,
		ProcurementHandler: procurementHandler,
		ReportsHandler:     reportsHandler,
		JobsHandler:        jobsHandler,
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
