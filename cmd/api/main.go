package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fulfillment-engine/api"
	"github.com/angelmondragon/fulfillment-engine/api/controllers"
	"github.com/angelmondragon/fulfillment-engine/api/routes"
	"github.com/angelmondragon/fulfillment-engine/internal/authz"
	"github.com/angelmondragon/fulfillment-engine/internal/catalog"
	"github.com/angelmondragon/fulfillment-engine/internal/checkout"
	"github.com/angelmondragon/fulfillment-engine/internal/commission"
	"github.com/angelmondragon/fulfillment-engine/internal/delivery"
	"github.com/angelmondragon/fulfillment-engine/internal/ledger"
	"github.com/angelmondragon/fulfillment-engine/internal/notifications"
	"github.com/angelmondragon/fulfillment-engine/internal/orders"
	"github.com/angelmondragon/fulfillment-engine/internal/payments"
	"github.com/angelmondragon/fulfillment-engine/internal/tracking"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/metrics"
	"github.com/angelmondragon/fulfillment-engine/pkg/migrate"
	"github.com/angelmondragon/fulfillment-engine/pkg/pubsub"
	"github.com/angelmondragon/fulfillment-engine/pkg/redis"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage/gcs"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	pingers := map[string]controllers.Pinger{"database": dbClient}
	deps := routes.Dependencies{
		Config:  cfg,
		Logger:  logg,
		Pingers: pingers,
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		pingers["redis"] = redisClient
		deps.Idempotency = redisClient
		deps.RateLimiter = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; idempotency and claim rate limits disabled")
	}

	authzService, err := authz.NewService(dbClient.DB())
	if err != nil {
		logg.Error(ctx, "failed to load authorization policy", err)
		os.Exit(1)
	}
	deps.Authz = authzService

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	fulfillmentMetrics := metrics.NewFulfillment(registry)
	deps.Metrics = fulfillmentMetrics
	deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	var photos storage.PhotoStore
	if cfg.FeatureFlags.PhotoStorageGCS {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		defer func() {
			if err := gcsClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing gcs", err)
			}
		}()
		pingers["gcs"] = gcsClient
		photos = gcsClient
	} else {
		local, err := storage.NewLocalStore(cfg.GCS.LocalRootDir)
		if err != nil {
			logg.Error(ctx, "failed to prepare local photo store", err)
			os.Exit(1)
		}
		photos = local
	}

	notificationRepo := notifications.NewRepository(dbClient.DB())
	sinks := []notifications.Sink{notifications.NewInboxSink(notificationRepo)}
	if cfg.FeatureFlags.NotificationsPubSub {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		pingers["pubsub"] = pubsubClient
		sinks = append(sinks, notifications.NewTopicSink(pubsubClient))
	}
	notifier := notifications.NewDispatcher(logg, sinks...)

	notificationService, err := notifications.NewService(notificationRepo)
	requireService(ctx, logg, "notifications", err)
	deps.Notifications = notificationService

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	requireService(ctx, logg, "ledger", err)

	trackingRepo := tracking.NewRepository(dbClient.DB())
	catalogGateway := catalog.NewGateway(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	deliveryRepo := delivery.NewRepository(dbClient.DB())

	assignments, err := delivery.NewService(delivery.ServiceParams{
		Repo:        deliveryRepo,
		Orders:      ordersRepo,
		Tx:          dbClient,
		Tracking:    trackingRepo,
		Ledger:      ledgerService,
		Notifier:    notifier,
		Metrics:     fulfillmentMetrics,
		Logger:      logg,
		AutoApprove: cfg.FeatureFlags.ClaimAutoApprove,
		ETA:         cfg.Delivery.ETA,
	})
	requireService(ctx, logg, "delivery", err)
	deps.Assignments = assignments
	deps.Matcher = delivery.NewMatcher(deliveryRepo, ordersRepo)

	commissionService, err := commission.NewService(commission.ServiceParams{
		Repo:     commission.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Ledger:   ledgerService,
		Rates:    commission.NewRateResolver(cfg.Commission.DefaultRate),
		Notifier: notifier,
		Logger:   logg,
	})
	requireService(ctx, logg, "commission", err)
	deps.Commission = commissionService

	ordersService, err := orders.NewService(orders.Dependencies{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Tracking: trackingRepo,
		Stock:    catalogGateway,
		Courier:  assignments,
		Payables: commissionService,
		Vendors:  catalogGateway,
		Photos:   photos,
		Notifier: notifier,
		Metrics:  fulfillmentMetrics,
		Logger:   logg,
	})
	requireService(ctx, logg, "orders", err)
	deps.Orders = ordersService

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(dbClient.DB()),
		Orders:   ordersRepo,
		Tx:       dbClient,
		Tracking: trackingRepo,
		Courier:  assignments,
		Payables: commissionService,
		Ledger:   ledgerService,
		Vendors:  catalogGateway,
		Photos:   photos,
		Notifier: notifier,
		Metrics:  fulfillmentMetrics,
		Logger:   logg,
	})
	requireService(ctx, logg, "payments", err)
	deps.Payments = paymentsService

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:         dbClient,
		Repo:       checkout.NewRepository(dbClient.DB()),
		Orders:     ordersRepo,
		Catalog:    catalogGateway,
		Payables:   commissionService,
		Notifier:   notifier,
		Metrics:    fulfillmentMetrics,
		Logger:     logg,
		DefaultFee: cfg.Delivery.DefaultFee,
	})
	requireService(ctx, logg, "checkout", err)
	deps.Checkout = checkoutService

	addr := api.ListenAddr(cfg, os.Getenv("PORT"))
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := api.NewServer(addr, routes.NewRouter(deps))

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name+" service", err)
	os.Exit(1)
}
