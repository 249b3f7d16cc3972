package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/homechef-backend/internal/cron"
	"github.com/angelmondragon/homechef-backend/internal/dispatch"
	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/instance"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	"github.com/angelmondragon/homechef-backend/pkg/migrate"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("job", "", "restrict the cycle to one job (outbox-retention, rider-index-prune)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	exitOn(logg, "load config", err)
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	exitOn(logg, "bootstrap database", err)
	defer dbClient.Close()

	exitOn(logg, "run dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	exitOn(logg, "bootstrap redis", err)
	defer redisClient.Close()

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind+":"+env), cfg.Cron.LockTTL)
	exitOn(logg, "create cron lock", err)

	registry, err := buildRegistry(cfg, logg, dbClient)
	exitOn(logg, "register cron jobs", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	exitOn(logg, "create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.ID(),
	})

	if *once || *only != "" {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx, *only); err != nil && !errors.Is(err, cron.ErrLocked) {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gdb := dbClient.DB()
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(gdb),
		DLQ:        outbox.NewDLQRepository(gdb),
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	prune, err := cron.NewRiderIndexPruneJob(cron.RiderIndexPruneJobParams{
		Logger:  logg,
		DB:      dbClient,
		Areas:   users.NewRepository(gdb),
		Indexes: dispatch.NewIndexStore(gdb),
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{retention, prune} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func exitOn(logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to %s", step), err)
	os.Exit(1)
}
