package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-triage/internal/api/http"
	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/classifier"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/feed"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/reconcile"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var store repository.TicketStore
	if pool := pg.PoolHandle(); pool != nil {
		store = repository.NewTicketStore(pool)
	} else {
		store = repository.NewMemoryStore()
	}

	counters := observability.NewCounters()

	hub := feed.NewHub(store, counters, logger, feed.Config{
		SnapshotLimit:    cfg.Feed.SnapshotLimit,
		SubscriberBuffer: cfg.Feed.SubscriberBuffer,
	})
	if redis.Ping(ctx) == nil {
		bridge := feed.NewRedisBridge(redis.Client, cfg.Redis.Channel, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("feed bridge stopped", zap.Error(err))
			}
		}()
	}

	provider, err := classifier.NewOpenAIProvider(cfg.LLM)
	if err != nil {
		logger.Fatal("failed to init inference provider", zap.Error(err))
	}

	pipeline := classifier.NewPipeline(
		store,
		classifier.NewLexiconAnalyzer(),
		provider,
		hub,
		counters,
		logger,
		classifier.Config{
			SentimentTimeout: cfg.Classifier.SentimentTimeout(),
			RequestTimeout:   cfg.LLM.RequestTimeout(),
			MaxRetries:       cfg.LLM.MaxRetries,
			InitialBackoff:   cfg.LLM.InitialBackoff(),
		},
	)

	pool := worker.NewPool(pipeline, store, logger, cfg.Classifier.Workers, cfg.Classifier.QueueSize)
	pool.Start(ctx)
	defer pool.Stop()

	ticketService := service.NewTicketService(service.Dependencies{
		Store:     store,
		Publisher: hub,
		Enqueuer:  pool,
		Logger:    logger,
	})

	// The server keeps its own reconciled view of the feed to serve
	// dashboard metrics.
	reconciler := reconcile.New(logger)
	go func() {
		if err := reconciler.Run(ctx, hub); err != nil && ctx.Err() == nil {
			logger.Warn("reconciler stopped", zap.Error(err))
		}
	}()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, counters, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, counters),
		Tickets:   handlers.NewTicketsHandler(ticketService),
		Dashboard: handlers.NewDashboardHandler(reconciler),
		Stream:    handlers.NewStreamHandler(hub, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
