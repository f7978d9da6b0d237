package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/ledger-recon/internal/app"
	jobmetrics "github.com/odyssey-erp/ledger-recon/internal/jobs"
	"github.com/odyssey-erp/ledger-recon/internal/ledgerstore"
	"github.com/odyssey-erp/ledger-recon/internal/observability"
	"github.com/odyssey-erp/ledger-recon/internal/platform/cache"
	"github.com/odyssey-erp/ledger-recon/internal/platform/db"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
	"github.com/odyssey-erp/ledger-recon/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerMetrics := observability.NewLedgerMetrics(nil)
	pipeline := reconcile.NewPipeline(ledgerstore.New(pool), reconcile.PipelineConfig{
		SourceTimeout: cfg.LedgerSourceTimeout,
		EntityTimeout: cfg.LedgerEntityTimeout,
		Logger:        logger,
		Recorder:      ledgerMetrics,
	})
	notifier := jobs.NewStatementNotifier(redisClient, cfg.LedgerNotifyChannel)
	refreshJob := jobs.NewStatementRefreshJob(pipeline, notifier, ledgerMetrics, logger, jobmetrics.NewMetrics(nil))

	refs, err := cfg.RefreshEntities()
	if err != nil {
		logger.Error("parse refresh entities", slog.Any("error", err))
		os.Exit(1)
	}
	cron, err := jobs.StatementRefreshCron(cfg.LedgerRefreshCron, refs)
	if err != nil {
		logger.Error("build refresh schedule", slog.Any("error", err))
		os.Exit(1)
	}
	if len(cron) > 0 {
		logger.Info("scheduled statement refresh", slog.String("cron", cfg.LedgerRefreshCron), slog.Int("entities", len(cron)))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisClientOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStatementRefresh, Handler: refreshJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           app.NewMetricsRouter(promhttp.Handler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", slog.Any("error", err))
			}
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
