package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-recon/cmd/ledgerd/cli"
	"github.com/odyssey-erp/ledger-recon/internal/app"
	"github.com/odyssey-erp/ledger-recon/internal/ledgerstore"
	"github.com/odyssey-erp/ledger-recon/internal/observability"
	"github.com/odyssey-erp/ledger-recon/internal/platform/db"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
	reconcilehttp "github.com/odyssey-erp/ledger-recon/internal/reconcile/http"
	"github.com/odyssey-erp/ledger-recon/internal/view"
	"github.com/odyssey-erp/ledger-recon/jobs"
	"github.com/odyssey-erp/ledger-recon/report"
)

const usage = `usage: ledgerd [command]

commands:
  serve       run the HTTP API (default)
  statement   print the statement of one counterparty
  jobs        trigger a background refresh or inspect the queue`

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

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var code int
	switch command {
	case "serve":
		code = serve(ctx, stop, cfg, logger)
	case "statement":
		code = statement(ctx, cfg, logger, args)
	case "jobs":
		code = jobsCommand(ctx, cfg, args)
	default:
		_, _ = fmt.Fprintln(os.Stderr, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

func newPipeline(pool *pgxpool.Pool, cfg *app.Config, logger *slog.Logger, recorder reconcile.Recorder) *reconcile.Pipeline {
	return reconcile.NewPipeline(ledgerstore.New(pool), reconcile.PipelineConfig{
		SourceTimeout: cfg.LedgerSourceTimeout,
		EntityTimeout: cfg.LedgerEntityTimeout,
		Logger:        logger,
		Recorder:      recorder,
	})
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	pipeline := newPipeline(pool, cfg, logger, metrics.Ledger())

	jobClient, err := jobs.NewClient(cfg.RedisClientOpt())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(cfg.RedisClientOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	ledgerHandler := reconcilehttp.NewHandler(logger, pipeline, jobClient)
	var reportHandler *report.Handler
	if cfg.GotenbergURL != "" {
		engine, err := view.NewEngine()
		if err != nil {
			logger.Error("parse templates", slog.Any("error", err))
			return 1
		}
		pdfClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
		renderer, err := report.NewStatementRenderer(engine, pdfClient)
		if err != nil {
			logger.Error("init pdf renderer", slog.Any("error", err))
			return 1
		}
		ledgerHandler.WithPDF(renderer)
		reportHandler = report.NewHandler(pdfClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerHandler,
		JobHandler:    jobs.NewHandler(inspector, logger),
		ReportHandler: reportHandler,
		Metrics:       metrics,
		DB:            pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		return 1
	}
	return 0
}

func statement(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("statement", flag.ContinueOnError)
	kind := fs.String("kind", "customer", "counterparty kind (customer or vendor)")
	id := fs.Int64("id", 0, "counterparty id")
	limit := fs.Int("limit", 0, "print at most this many transactions")
	jsonOut := fs.Bool("json", false, "print JSON instead of a table")
	watch := fs.Duration("watch", 0, "refresh on this interval until interrupted")
	lang := fs.String("lang", "en", "locale used to format amounts")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	statementCLI, err := cli.NewStatementCLI(newPipeline(pool, cfg, logger, nil), logger)
	if err != nil {
		logger.Error("init statement cli", slog.Any("error", err))
		return 1
	}
	return statementCLI.StatementCommand(ctx, cli.StatementOptions{
		Kind:       *kind,
		EntityID:   *id,
		Limit:      *limit,
		JSONOutput: *jsonOut,
		Watch:      *watch,
		Lang:       *lang,
	})
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	trigger := fs.String("trigger", "", "enqueue a statement refresh for kind:id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisClientOpt())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	if *trigger != "" {
		ref, err := reconcile.ParseEntityRef(*trigger)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
			return 1
		}
		info, err := jobsCLI.Trigger(ctx, ref)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	}

	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}
