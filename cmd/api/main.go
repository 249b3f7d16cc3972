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

	"github.com/angelmondragon/homechef-backend/api/routes"
	"github.com/angelmondragon/homechef-backend/internal/auth"
	"github.com/angelmondragon/homechef-backend/internal/cart"
	"github.com/angelmondragon/homechef-backend/internal/dispatch"
	"github.com/angelmondragon/homechef-backend/internal/foods"
	"github.com/angelmondragon/homechef-backend/internal/orders"
	"github.com/angelmondragon/homechef-backend/internal/riders"
	"github.com/angelmondragon/homechef-backend/internal/users"
	"github.com/angelmondragon/homechef-backend/pkg/auth/session"
	"github.com/angelmondragon/homechef-backend/pkg/config"
	"github.com/angelmondragon/homechef-backend/pkg/db"
	"github.com/angelmondragon/homechef-backend/pkg/instance"
	"github.com/angelmondragon/homechef-backend/pkg/logger"
	"github.com/angelmondragon/homechef-backend/pkg/metrics"
	"github.com/angelmondragon/homechef-backend/pkg/migrate"
	"github.com/angelmondragon/homechef-backend/pkg/outbox"
	"github.com/angelmondragon/homechef-backend/pkg/redis"
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services, err := buildServices(cfg, logg, dbClient, sessionManager, metrics.NewDispatchMetrics(registry))
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			registry,
			metrics.NewHTTPMetrics(registry),
			services,
		),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessionManager *session.Manager, dispatchMetrics *metrics.DispatchMetrics) (routes.Services, error) {
	gdb := dbClient.DB()
	timeout := dbClient.Timeout()
	userRepo := users.NewRepository(gdb)
	foodRepo := foods.NewRepository(gdb)
	orderRepo := orders.NewRepository(gdb)
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Timeout:        timeout,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		Users:          userRepo,
		PasswordConfig: cfg.Password,
		Timeout:        timeout,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	userService, err := users.NewService(userRepo, timeout)
	if err != nil {
		return routes.Services{}, err
	}
	foodService, err := foods.NewService(foodRepo, userRepo, timeout)
	if err != nil {
		return routes.Services{}, err
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:    cart.NewRepository(gdb),
		Users:   userRepo,
		Foods:   foodRepo,
		Tx:      dbClient,
		Outbox:  emitter,
		Timeout: timeout,
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	directory, err := riders.NewDirectory(userRepo)
	if err != nil {
		return routes.Services{}, err
	}
	dispatchService, err := dispatch.NewService(dispatch.ServiceParams{
		Sellers:   userRepo,
		Foods:     foodRepo,
		Items:     orderRepo,
		Directory: directory,
		Index:     dispatch.NewIndexStore(gdb),
		Tx:        dbClient,
		Outbox:    emitter,
		Metrics:   dispatchMetrics,
		Timeout:   timeout,
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Users:   userRepo,
		Tx:      dbClient,
		Outbox:  emitter,
		Metrics: dispatchMetrics,
		Timeout: timeout,
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	riderService, err := riders.NewService(userRepo, riders.UsersAvailabilityWriter(), dbClient, emitter, timeout, logg)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:     authService,
		Register: registerService,
		Users:    userService,
		Foods:    foodService,
		Cart:     cartService,
		Dispatch: dispatchService,
		Orders:   orderService,
		Riders:   riderService,
	}, nil
}
