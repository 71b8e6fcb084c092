package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	hhttp "notify-dispatch/internal/handler/http"
	"notify-dispatch/internal/infra/adapter/persistence"
	"notify-dispatch/internal/infra/intake"
	"notify-dispatch/internal/infra/notifier"
	workerPkg "notify-dispatch/internal/infra/worker"
	"notify-dispatch/internal/observability/logging"
	"notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/resilience/retry"
	"notify-dispatch/internal/usecase/channel"
	"notify-dispatch/internal/usecase/history"
	"notify-dispatch/internal/usecase/notify"
)

// consumer is implemented by every intake driver.
type consumer interface {
	Run(ctx context.Context) error
}

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifyConfig, err := notify.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load notify configuration", slog.Any("error", err))
		os.Exit(1)
	}
	workerConfig, err := workerPkg.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("intake_driver", workerConfig.Driver),
		slog.String("heartbeat_cron", notifyConfig.HeartbeatCron),
		slog.String("heartbeat_tz", notifyConfig.HeartbeatTZ),
		slog.Int("max_concurrent", notifyConfig.MaxConcurrent),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	// The API process owns the schema; the worker only waits for it.
	stores, err := persistence.Open(ctx, os.Getenv("DATABASE_URL"), persistence.Options{
		WaitForSchema: true,
		WaitAttempts:  10,
		WaitInterval:  3 * time.Second,
	})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	channels := &channel.Service{Repo: stores.Channels}
	if notifyConfig.BlockPrivateTargets {
		channels.Guard = channel.PublicTargetsOnly
	}
	seedChannels(ctx, logger, channels, notifyConfig.ChannelsFile)

	notifyService := notify.NewService(channels, history.NewRecorder(stores.History), notifier.NewRegistry(notifier.Options{}), notifyConfig)

	if err := metrics.Register(prometheus.DefaultRegisterer, metrics.ProcessWorker, getVersion(), stores.DB); err != nil {
		logger.Error("failed to register process metrics", slog.Any("error", err))
		os.Exit(1)
	}
	workerMetrics := workerPkg.NewWorkerMetrics(prometheus.DefaultRegisterer)
	healthServer := workerPkg.NewHealthServer(
		fmt.Sprintf(":%d", workerConfig.MetricsPort),
		&hhttp.HealthHandler{DB: stores.DB, Channels: notifyService, Version: getVersion()},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := healthServer.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if notifyConfig.HeartbeatCron != "" {
		schedule, err := notifyConfig.HeartbeatSchedule()
		if err != nil {
			logger.Error("invalid heartbeat schedule", slog.Any("error", err))
			os.Exit(1)
		}
		scheduler := workerPkg.ScheduleHeartbeat(schedule, workerPkg.NewHeartbeat(notifyService, workerMetrics, notifyConfig.SendTimeout))
		scheduler.Start()
		logger.Info("heartbeat scheduled",
			slog.String("cron", notifyConfig.HeartbeatCron),
			slog.String("timezone", notifyConfig.HeartbeatTZ))
		g.Go(func() error {
			<-gctx.Done()
			<-scheduler.Stop().Done()
			logger.Info("heartbeat scheduler stopped")
			return nil
		})
	}

	if workerConfig.IntakeEnabled() {
		c, cleanup, err := newConsumer(workerConfig, notifyService, notifyConfig.SendTimeout)
		if err != nil {
			logger.Error("failed to create intake consumer", slog.Any("error", err))
			os.Exit(1)
		}
		defer cleanup()
		g.Go(func() error {
			workerMetrics.SetIntakeRunning(workerConfig.Driver, true)
			defer workerMetrics.SetIntakeRunning(workerConfig.Driver, false)
			if err := c.Run(gctx); err != nil {
				return fmt.Errorf("%s intake: %w", workerConfig.Driver, err)
			}
			return nil
		})
	} else {
		logger.Info("queue intake disabled, INTAKE_DRIVER not set")
	}

	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("version", getVersion()))

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		exitOnError(logger, err)
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down worker...", slog.Duration("timeout", workerConfig.ShutdownTimeout))
	healthServer.SetReady(false)

	select {
	case err := <-done:
		exitOnError(logger, err)
		logger.Info("worker stopped")
	case <-time.After(workerConfig.ShutdownTimeout):
		logger.Error("worker shutdown timed out")
		os.Exit(1)
	}
}

// newConsumer builds the consumer for cfg.Driver. cleanup releases the
// driver's client once Run has returned.
func newConsumer(cfg workerPkg.WorkerConfig, sender intake.Sender, timeout time.Duration) (consumer, func(), error) {
	handler := intake.NewHandler(sender, cfg.Driver, timeout)

	switch cfg.Driver {
	case intake.DriverRedis:
		// BLPOP blocks for up to the pop timeout, so reads must outlast it.
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			ReadTimeout: cfg.RedisPopTimeout + 5*time.Second,
		})
		cleanup := func() {
			if err := client.Close(); err != nil {
				slog.Error("failed to close redis client", slog.Any("error", err))
			}
		}
		return intake.NewRedisConsumer(client, cfg.RedisKey, handler, cfg.RedisPopTimeout, time.Second), cleanup, nil

	case intake.DriverKafka:
		reader, err := intake.NewKafkaReader(intake.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroupID,
		})
		if err != nil {
			return nil, nil, err
		}
		// The consumer closes the reader when Run returns.
		return intake.NewKafkaConsumer(reader, handler, retry.IntakeConfig()), func() {}, nil

	case intake.DriverNSQ:
		c, err := intake.NewNSQConsumer(intake.NSQConfig{
			Topic:            cfg.NSQTopic,
			Channel:          cfg.NSQChannel,
			NSQDAddresses:    cfg.NSQDAddrs,
			LookupdAddresses: cfg.NSQLookupdAddrs,
			MaxInFlight:      cfg.NSQMaxInFlight,
			MaxAttempts:      uint16(cfg.NSQMaxAttempts),
			Concurrency:      cfg.NSQMaxInFlight,
		}, handler)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown intake driver %q", cfg.Driver)
}

// seedChannels adds the configs from the bootstrap file, if one is set.
func seedChannels(ctx context.Context, logger *slog.Logger, svc *channel.Service, path string) {
	if path == "" {
		return
	}
	configs, err := channel.LoadBootstrapFile(path)
	if err != nil {
		logger.Error("failed to load channel bootstrap file", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	added, err := svc.Seed(ctx, configs)
	if err != nil {
		logger.Error("failed to seed channel configs", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("channel configs seeded", slog.Int("added", added), slog.Int("in_file", len(configs)))
}

func exitOnError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("worker failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}
