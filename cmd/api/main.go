package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zimmerhq/zimmer-admin-api/api/routes"
	"github.com/zimmerhq/zimmer-admin-api/internal/adjustments"
	"github.com/zimmerhq/zimmer-admin-api/internal/auth"
	"github.com/zimmerhq/zimmer-admin-api/internal/automations"
	"github.com/zimmerhq/zimmer-admin-api/internal/payments"
	"github.com/zimmerhq/zimmer-admin-api/internal/subscriptions"
	"github.com/zimmerhq/zimmer-admin-api/internal/users"
	"github.com/zimmerhq/zimmer-admin-api/pkg/auth/session"
	"github.com/zimmerhq/zimmer-admin-api/pkg/config"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db"
	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
	"github.com/zimmerhq/zimmer-admin-api/pkg/metrics"
	"github.com/zimmerhq/zimmer-admin-api/pkg/migrate"
	"github.com/zimmerhq/zimmer-admin-api/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()

	authService, err := auth.NewService(auth.ServiceParams{
		AdminRepo:      auth.NewAdminRepository(gormDB),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	automationsService, err := automations.NewService(automations.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create automations service", err)
		os.Exit(1)
	}

	subscriptionsRepo := subscriptions.NewRepository(gormDB)
	subscriptionsService, err := subscriptions.NewService(subscriptionsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.NewRepository(gormDB), subscriptionsRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ledgerService, err := adjustments.NewService(
		adjustments.NewRepository(gormDB),
		subscriptionsRepo,
		dbClient,
		cfg.Ledger.MaxAbsDeltaTokens,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Redis:       redisClient,
		Sessions:    sessionManager,
		DB:          dbClient,
		HTTPMetrics: httpMetrics,
	}, routes.Services{
		Auth:          authService,
		Users:         usersService,
		Automations:   automationsService,
		Subscriptions: subscriptionsService,
		Payments:      paymentsService,
		Ledger:        ledgerService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"port": port,
	})
	logg.Info(ctx, "starting admin api")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "server stopped unexpectedly", err)
		os.Exit(1)
	}
}
