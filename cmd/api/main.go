package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"measurehub_backend/internal/adapters/storage"
	"measurehub_backend/internal/assignment"
	"measurehub_backend/internal/auth"
	"measurehub_backend/internal/directory"
	directoryadapter "measurehub_backend/internal/directory/adapter"
	"measurehub_backend/internal/events"
	"measurehub_backend/internal/exports"
	apphttp "measurehub_backend/internal/http"
	"measurehub_backend/internal/http/router"
	"measurehub_backend/internal/invites"
	"measurehub_backend/internal/measurements"
	"measurehub_backend/internal/notification"
	"measurehub_backend/internal/orders"
	"measurehub_backend/internal/scheduler"
	"measurehub_backend/internal/telegram"
	"measurehub_backend/internal/webhook"
	"measurehub_backend/platform/config"
	"measurehub_backend/platform/db"
	"measurehub_backend/platform/logger"
	"measurehub_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	ordersCache, closeCache := initOrdersCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	taskClient, closeTasks := initTaskClient(cfg, log)
	if closeTasks != nil {
		defer closeTasks()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	tgClient := telegram.NewClient(cfg, log)
	ordersClient := orders.NewClient(cfg, log)
	ordersService := orders.NewService(ordersClient, ordersCache, cfg.GetOrdersCacheTTL(), log)

	directoryModule := directory.NewModule(pool, val, log)

	cursorRepo := assignment.NewCursorRepo(pool)
	ledger := assignment.NewLedger(cursorRepo, log)
	resolver := assignment.NewResolver(directoryModule.Service(), ledger, log)

	notificationStore := notification.NewRepo(pool)
	dispatcher := notification.NewDispatcher(notificationStore, cfg, log)
	notifier := notification.NewNotifier(dispatcher, directoryModule.Service(), ordersService, tgClient, log)

	measurementsModule := measurements.NewModule(pool, resolver, notifier, eventBus, cfg, val, log)
	measurementsModule.RegisterHandlers(eventBus)

	// The webhook hands events to the same orchestrator the admin API uses.
	var taskEnqueuer webhook.TaskEnqueuer
	if taskClient != nil {
		taskEnqueuer = taskClient
	}
	webhookModule := webhook.NewModule(measurementsModule.Orchestrator(), taskEnqueuer, cfg, log)

	authModule := auth.NewModule(pool, cfg, val, log)

	provisioner := directoryadapter.NewUserProvisioner(directoryModule.Service())
	invitesModule := invites.NewModule(pool, provisioner, cfg, val, log)

	modules := []apphttp.Module{
		authModule,
		directoryModule,
		measurementsModule,
		webhookModule,
		invitesModule,
	}

	if cfg.IsMinIOEnabled() {
		storageClient, err := storage.New(cfg)
		if err != nil {
			log.Error("failed to initialize storage client", "error", err)
			panic("failed to initialize storage client: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure exports bucket", 5, 2*time.Second, func() error {
			return storageClient.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure exports bucket exists", "error", err)
			panic("failed to ensure exports bucket exists: " + err.Error())
		}

		names := directoryadapter.NewUserNameLookup(directoryModule.Service())
		modules = append(modules, exports.NewModule(measurementsModule.Repository(), names, storageClient, val, log))
		log.Info("storage client initialized", "bucket", cfg.GetMinioBucketExports())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; measurement exports disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  db.NewPoolAdapter(pool),
		Modules: modules,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initOrdersCache connects the redis cache for order lookups. A missing or
// broken redis only disables caching.
func initOrdersCache(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; order lookups run uncached")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url for order cache", "error", err)
		return nil, nil
	}

	client := redis.NewClient(opts)
	return client, func() {
		_ = client.Close()
	}
}

// initTaskClient connects the asynq producer used for notification retries
// and escalation checks.
func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notification retries and escalations disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
