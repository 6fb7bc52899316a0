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

	"github.com/odyssey-erp/pricedesk/internal/app"
	"github.com/odyssey-erp/pricedesk/internal/editsession"
	"github.com/odyssey-erp/pricedesk/internal/notify"
	"github.com/odyssey-erp/pricedesk/internal/observability"
	"github.com/odyssey-erp/pricedesk/internal/platform/cache"
	"github.com/odyssey-erp/pricedesk/internal/platform/db"
	"github.com/odyssey-erp/pricedesk/internal/pricetables"
	"github.com/odyssey-erp/pricedesk/internal/stock"
	"github.com/odyssey-erp/pricedesk/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	priceService := pricetables.NewService(
		pricetables.NewRepository(dbpool),
		cache.NewVersioned(redisClient, "pricetables", cfg.CacheTTL),
		logger,
	)
	stockService := stock.NewService(
		stock.NewRepository(dbpool),
		cache.NewVersioned(redisClient, "stock", cfg.CacheTTL),
		logger,
	)

	formatter := notify.NewFormatter(cfg.NotifyLang)
	notifier := notify.Multi{
		notify.Formatted(formatter, notify.LogNotifier{Logger: logger}),
	}
	if redisClient != nil {
		notifier = append(notifier, notify.Formatted(formatter, notify.NewRedisNotifier(redisClient, cfg.NotifyChannel, logger)))
	}

	registry := editsession.NewRegistry(editsession.Options{
		ChunkSize: cfg.CommitChunkSize,
		TTL:       cfg.EditSessionTTL,
		Notifier:  notifier,
		Observer:  metrics,
		Logger:    logger,
	})
	bindings := []editsession.Binding{
		{
			Table:     pricetables.TableName,
			Updater:   priceService,
			Refresher: priceService,
			Resolver:  priceService.Resolve,
			Validate:  priceService.ValidateField,
		},
		{
			Table:     stock.TableName,
			Updater:   stockService,
			Refresher: stockService,
			Validate:  stockService.ValidateField,
		},
	}
	for _, b := range bindings {
		if err := registry.Bind(b); err != nil {
			logger.Error("bind edit table", slog.String("table", b.Table), slog.Any("error", err))
			os.Exit(1)
		}
	}
	go registry.Run(ctx, time.Minute)

	redisOpts := cfg.AsynqRedis()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PriceTablesHandler: pricetables.NewHandler(logger, priceService, jobClient),
		StockHandler:       stock.NewHandler(logger, stockService),
		SessionHandler:     editsession.NewHandler(logger, registry),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Ready: func(r *http.Request) error {
			return dbpool.Ping(r.Context())
		},
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
	logger.Info("shutting down", slog.Int("open_sessions", registry.Len()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
