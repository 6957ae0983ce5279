package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zimmerhq/zimmer-admin-api/internal/audit"
	"github.com/zimmerhq/zimmer-admin-api/pkg/config"
	"github.com/zimmerhq/zimmer-admin-api/pkg/db"
	"github.com/zimmerhq/zimmer-admin-api/pkg/logger"
	"github.com/zimmerhq/zimmer-admin-api/pkg/metrics"
	"github.com/zimmerhq/zimmer-admin-api/pkg/migrate"
	"github.com/zimmerhq/zimmer-admin-api/pkg/redis"
)

const lockKeyFormat = "zm:audit:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "audit"})

	once := flag.Bool("once", false, "run one audit cycle and exit")
	interval := flag.Duration("interval", 0, "cadence between audit cycles (default 6h)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "audit",
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

	ledgerJob, err := audit.NewLedgerJob(audit.LedgerJobParams{
		Logger: logg,
		Store:  audit.NewStore(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger job", err)
		os.Exit(1)
	}

	lock, err := audit.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit lock", err)
		os.Exit(1)
	}

	runner, err := audit.NewRunner(audit.RunnerParams{
		Logger:   logg,
		Registry: audit.NewRegistry(ledgerJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: *interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create audit runner", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	if *once {
		logg.Info(ctx, "running one audit cycle")
		start := time.Now()
		if err := runner.RunOnce(ctx); err != nil {
			logg.Error(ctx, "audit cycle failed", err)
			os.Exit(1)
		}
		ctx = logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds())
		logg.Info(ctx, "audit cycle complete")
		return
	}

	logg.Info(ctx, "starting audit worker")
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "audit worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "audit worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
