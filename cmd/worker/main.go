package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vela-pos/vela/internal/app"
	"github.com/vela-pos/vela/internal/credit"
	jobmetrics "github.com/vela-pos/vela/internal/jobs"
	"github.com/vela-pos/vela/internal/payables"
	"github.com/vela-pos/vela/internal/platform/cache"
	"github.com/vela-pos/vela/internal/receivables"
	"github.com/vela-pos/vela/internal/reports"
	"github.com/vela-pos/vela/internal/shared"
	"github.com/vela-pos/vela/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	policyStore := credit.NewPolicyStore(pool)
	var alerts credit.AlertSink
	if redisClient != nil {
		alerts = credit.NewRedisAlertSink(redisClient, cfg.CreditAlertChannel, logger)
	} else {
		alerts = credit.NewLogAlertSink(logger)
	}

	engine := credit.NewEngine(policyStore, clock)
	creditRepo := credit.NewRepository(pool, clock)
	creditService := credit.NewService(logger, creditRepo, engine, policyStore, alerts, redisClient, cfg.ReportCacheTTL, clock)

	receivablesRepo := receivables.NewRepository(pool, clock)
	receivablesService := receivables.NewService(logger, receivablesRepo, engine, creditService, alerts, clock)

	payablesRepo := payables.NewRepository(pool, clock)
	payablesService := payables.NewService(logger, payablesRepo, clock)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(logger, reportsRepo, redisClient, cfg.ReportCacheTTL, clock)

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	receivablesSweep := jobs.NewOverdueSweepJob(receivablesService, logger, metrics)
	payablesSweep := jobs.NewPayablesSweepJob(payablesService, logger, metrics)
	creditRecalc := jobs.NewCreditRecalcJob(creditService, logger, metrics)
	reportsWarmup := jobs.NewReportsWarmupJob(reportsService, logger, metrics)

	warmupTask, err := jobs.NewReportsWarmupTask(7, 30)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReceivablesOverdueSweep, Handler: receivablesSweep.Handle},
			{Type: jobs.TaskPayablesOverdueSweep, Handler: payablesSweep.Handle},
			{Type: jobs.TaskCreditRecalcAll, Handler: creditRecalc.Handle},
			{Type: jobs.TaskReportsWarmup, Handler: reportsWarmup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: jobs.NewReceivablesOverdueSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "10 1 * * *", Task: jobs.NewPayablesOverdueSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewCreditRecalcAllTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
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
