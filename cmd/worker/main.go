package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/pricedesk/internal/app"
	"github.com/odyssey-erp/pricedesk/internal/bulkcommit"
	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	jobmetrics "github.com/odyssey-erp/pricedesk/internal/jobs"
	"github.com/odyssey-erp/pricedesk/internal/notify"
	"github.com/odyssey-erp/pricedesk/internal/platform/cache"
	"github.com/odyssey-erp/pricedesk/internal/platform/db"
	"github.com/odyssey-erp/pricedesk/internal/pricetables"
	"github.com/odyssey-erp/pricedesk/internal/shared"
	"github.com/odyssey-erp/pricedesk/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	priceService := pricetables.NewService(
		pricetables.NewRepository(pool),
		cache.NewVersioned(redisClient, "pricetables", cfg.CacheTTL),
		logger,
	)

	formatter := notify.NewFormatter(cfg.NotifyLang)
	notifier := notify.Multi{notify.Formatted(formatter, notify.LogNotifier{Logger: logger})}
	if redisClient != nil {
		notifier = append(notifier, notify.Formatted(formatter, notify.NewRedisNotifier(redisClient, cfg.NotifyChannel, logger)))
	}

	coordinator, err := bulkcommit.New(bulkcommit.Config{
		Table:     pricetables.TableName,
		Buffer:    editbuffer.New(),
		Updater:   priceService,
		Refresher: priceService,
		Resolver:  priceService.Resolve,
		Notifier:  notifier,
		Logger:    logger,
		ChunkSize: cfg.CommitChunkSize,
	})
	if err != nil {
		logger.Error("init bulk commit", slog.Any("error", err))
		os.Exit(1)
	}

	idempotency := shared.NewIdempotencyStore(pool)
	repriceJob := &jobs.CategoryRepriceJob{
		Patches:     priceService,
		Submitter:   coordinator,
		Idempotency: idempotency,
		Logger:      logger,
		Metrics:     jobmetrics.NewMetrics(nil),
	}
	cleanupJob := &jobs.IdempotencyCleanupJob{Store: idempotency, Logger: logger}

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.DefaultKeyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedis(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCategoryReprice, Handler: repriceJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
