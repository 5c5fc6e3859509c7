package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/internal/orders"
	"github.com/avrportal/tindago-backend/internal/payments"
	"github.com/avrportal/tindago-backend/internal/refunds"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/migrate"
	"github.com/avrportal/tindago-backend/pkg/paymongo"
	"github.com/avrportal/tindago-backend/pkg/pubsub"
	"github.com/avrportal/tindago-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "refund-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "refund-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	bus, err := eventbus.NewRedisBus(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build event bus", err)
		os.Exit(1)
	}

	notifier := notifications.NewDispatcher(nil, logg)
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		notifier = notifications.NewDispatcher(pubsubClient.NotificationsPublisher(), logg)
	}

	gateway, err := paymongo.NewClient(context.Background(), cfg.PayMongo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build paymongo client", err)
		os.Exit(1)
	}

	worker, err := refunds.NewWorker(
		refunds.NewRepository(dbClient.DB()),
		payments.NewRepository(dbClient.DB()),
		orders.NewRepository(dbClient.DB()),
		gateway,
		bus,
		notifier,
		cfg.Refunds,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create refund worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting refund worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "refund worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "refund worker shutting down gracefully")
}
