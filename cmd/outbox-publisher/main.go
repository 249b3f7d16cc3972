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

	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/instance"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	"github.com/angelmondragon/homechef-backend/pkg/migrate"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/outbox/registry"
	"github.com/angelmondragon/homechef-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

// options select a one-shot DLQ operation instead of the relay loop.
type options struct {
	listDLQ int
	requeue string
}

func main() {
	var opts options
	flag.IntVar(&opts.listDLQ, "dlq", 0, "print the newest N dead-lettered events and exit")
	flag.StringVar(&opts.requeue, "requeue", "", "move a dead-lettered event id back onto the outbox and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logg, opts)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
}

// run owns every client it opens so deferred closes fire before main exits.
func run(ctx context.Context, logg *logger.Logger, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeLogged(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	gdb := dbClient.DB()
	dlq := outbox.NewDLQRepository(gdb)
	switch {
	case opts.listDLQ > 0:
		return printDeadLetters(ctx, os.Stdout, dlq, opts.listDLQ)
	case opts.requeue != "":
		if err := requeueDeadLetter(ctx, dbClient, dlq, opts.requeue); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "event_id", opts.requeue), "dead letter requeued")
		return nil
	}

	routes, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	broker, err := pubsub.NewClient(ctx, cfg.GCP, routes.Topics(), logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeLogged(logg, "pubsub", broker.Close)

	relay, err := NewRelay(RelayParams{
		Outbox:  cfg.Outbox,
		Logger:  logg,
		Store:   dbClient,
		Broker:  broker,
		Events:  outbox.NewRepository(gdb),
		DLQ:     dlq,
		Routes:  routes,
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.ID(),
		"topics":      routes.Topics(),
	})
	logg.Info(ctx, "starting outbox publisher")
	err = relay.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logg.Info(ctx, "outbox publisher shutting down gracefully")
		return nil
	}
	return err
}

func closeLogged(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+what, err)
	}
}
