package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/sensor-notifier/internal/config"
	"github.com/CyberwizD/sensor-notifier/internal/consumer"
	"github.com/CyberwizD/sensor-notifier/internal/repository"
	"github.com/CyberwizD/sensor-notifier/internal/routes"
	"github.com/CyberwizD/sensor-notifier/internal/scheduler"
	"github.com/CyberwizD/sensor-notifier/internal/services"
	"github.com/CyberwizD/sensor-notifier/pkg/logger"
	"github.com/CyberwizD/sensor-notifier/pkg/metrics"
	"github.com/CyberwizD/sensor-notifier/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting sensor notifier", slog.String("app", cfg.AppName))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := repository.Migrate(db); err != nil {
		logr.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	devices := repository.NewDeviceStore(db)
	recipients := repository.NewRecipientStore(db)
	users := repository.NewUserStore(db)
	cycles := repository.NewCycleStore(db)

	// Redis is optional; interfaces stay nil without it.
	var (
		suppressor services.TokenSuppressor
		checker    services.TokenChecker
		runLock    services.RunLock
	)
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		redisRepo := repository.NewRedisRepository(rdb, cfg.SuppressTTL)
		defer redisRepo.Close()
		suppressor, checker, runLock = redisRepo, redisRepo, redisRepo
	}

	metricsCollector := metrics.New()
	fcmProvider := services.NewFCMProvider(cfg.FCMServerKey, cfg.FCMEndpoint, cfg.ProviderTimeout, logr)
	pruner := services.NewRegistryPruner(recipients, suppressor, cfg.SuppressTTL, cfg.PruneConcurrency, metricsCollector, logr)
	dispatcher := services.NewDispatcher(fcmProvider, pruner, cfg.FanoutMaxInFlight, metricsCollector, logr)
	statusUpdater := services.NewStatusUpdater(cycles, logr)

	notifier := services.NewNotifier(
		devices,
		devices,
		recipients,
		checker,
		dispatcher,
		statusUpdater,
		metricsCollector,
		logr,
	)

	cleanup := services.NewCleanupJob(users, runLock, services.CleanupConfig{
		PageSize:      cfg.CleanupPageSize,
		InactiveAfter: cfg.CleanupInactiveAfter,
		Concurrency:   cfg.CleanupConcurrency,
		DeleteRPS:     cfg.CleanupDeleteRPS,
		LockTTL:       cfg.CleanupLockTTL,
		Retry: retry.Config{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
		},
	}, metricsCollector, logr)

	router := services.NewRouter(notifier, cleanup, metricsCollector, logr)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		cfg.TriggerQueue,
		cfg.TriggerDLQ,
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	triggerConsumer := consumer.NewTriggerConsumer(base, router, logr, cfg.MaxDeliveries)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(ctx, "inactive-account-cleanup", cfg.CleanupSchedule, cfg.CleanupTimezone, func(ctx context.Context) error {
		_, err := cleanup.Run(ctx)
		if errors.Is(err, services.ErrCleanupRunning) {
			logr.Info("cleanup skipped, another run holds the lock")
			return nil
		}
		return err
	}, logr)
	if err != nil {
		logr.Error("failed to schedule cleanup", slog.Any("error", err))
		os.Exit(1)
	}

	started := time.Now()
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           routes.NewRouter(cfg.AppName, metricsCollector, sched, started),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
		return nil
	})
	g.Go(func() error {
		return triggerConsumer.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownHTTP(httpSrv, logr)
		return nil
	})

	if err := g.Wait(); err != nil {
		logr.Error("sensor notifier exited", slog.Any("error", err))
	}
	logr.Info("sensor notifier stopped")
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
