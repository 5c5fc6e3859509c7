package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/avrportal/tindago-backend/api/routes"
	"github.com/avrportal/tindago-backend/internal/cancellations"
	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/internal/orders"
	"github.com/avrportal/tindago-backend/internal/payments"
	"github.com/avrportal/tindago-backend/internal/refunds"
	paymongohook "github.com/avrportal/tindago-backend/internal/webhooks/paymongo"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/metrics"
	"github.com/avrportal/tindago-backend/pkg/migrate"
	"github.com/avrportal/tindago-backend/pkg/paymongo"
	"github.com/avrportal/tindago-backend/pkg/pubsub"
	"github.com/avrportal/tindago-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	} else {
		logg.Warn(context.Background(), "pubsub disabled, notifications will not be delivered")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gateway, err := paymongo.NewClient(context.Background(), cfg.PayMongo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build paymongo client", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	intentsRepo := payments.NewRepository(dbClient.DB())
	refundsRepo := refunds.NewRepository(dbClient.DB())

	ordersService, err := orders.NewService(ordersRepo, dbClient, bus, notifier, cfg.Order, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(intentsRepo, ordersRepo, dbClient, gateway, bus, notifier, paymentMetrics, cfg.Reconcile, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}
	cancelManager, err := cancellations.NewManager(ordersRepo, intentsRepo, refundsRepo, dbClient, bus, notifier, cfg.Order, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation manager", err)
		os.Exit(1)
	}
	webhookService, err := paymongohook.NewService(paymentsService, redisClient, dbClient.DB(), paymentMetrics, cfg.PayMongo.WebhookSecret, cfg.Redis.WebhookIdempotencyTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Cfg:           cfg,
			Logg:          logg,
			DB:            dbClient,
			Redis:         redisClient,
			Registry:      registry,
			Orders:        ordersService,
			Payments:      paymentsService,
			Cancellations: cancelManager,
			PayMongoHooks: webhookService,
		}),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
