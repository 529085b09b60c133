package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/feiralivre/marketplace-backend/api/routes"
	cartsvc "github.com/feiralivre/marketplace-backend/internal/cart"
	"github.com/feiralivre/marketplace-backend/internal/catalog"
	checkoutsvc "github.com/feiralivre/marketplace-backend/internal/checkout"
	"github.com/feiralivre/marketplace-backend/internal/customer"
	"github.com/feiralivre/marketplace-backend/internal/notifications"
	ordersvc "github.com/feiralivre/marketplace-backend/internal/orders"
	"github.com/feiralivre/marketplace-backend/internal/pricing"
	"github.com/feiralivre/marketplace-backend/pkg/config"
	"github.com/feiralivre/marketplace-backend/pkg/db"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
	"github.com/feiralivre/marketplace-backend/pkg/migrate"
	"github.com/feiralivre/marketplace-backend/pkg/outbox"
	"github.com/feiralivre/marketplace-backend/pkg/redis"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	customerRepo := customer.NewRepository(conn)
	cartRepo := cartsvc.NewRepository(conn)
	ordersRepo := ordersvc.NewRepository(conn)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	resolver, err := pricing.NewResolver(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing resolver", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(cartRepo, dbClient, resolver, cfg.Cart)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		cartRepo,
		catalogRepo,
		customerRepo,
		ordersRepo,
		outboxService,
		redisClient,
		cfg.Cart.IdempotencyTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(ordersRepo, catalogRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
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
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Cart:          cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Notifications: notificationsService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
