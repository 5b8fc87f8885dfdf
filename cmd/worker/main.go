package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"measurehub_backend/internal/assignment"
	"measurehub_backend/internal/directory"
	"measurehub_backend/internal/email"
	"measurehub_backend/internal/events"
	"measurehub_backend/internal/measurements"
	"measurehub_backend/internal/notification"
	"measurehub_backend/internal/orders"
	"measurehub_backend/internal/scheduler"
	"measurehub_backend/internal/telegram"
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
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	ordersCache, closeCache := initOrdersCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	// Worker-side event processing uses the same pipeline the API does: the
	// retry task replays an inbound event through the orchestrator.
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

	emailSender := email.New(cfg)

	janitor := scheduler.NewReservationJanitor(notificationStore, cfg, log)
	go janitor.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, measurementsModule.Orchestrator(), measurementsModule.Repository(), notifier, emailSender, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
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
