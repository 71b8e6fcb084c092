package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"notify-dispatch/internal/common/pagination"
	hhttp "notify-dispatch/internal/handler/http"
	hnotify "notify-dispatch/internal/handler/http/notify"
	"notify-dispatch/internal/handler/http/requestid"
	"notify-dispatch/internal/infra/adapter/persistence"
	"notify-dispatch/internal/infra/notifier"
	"notify-dispatch/internal/observability/logging"
	"notify-dispatch/internal/observability/metrics"
	"notify-dispatch/internal/observability/tracing"
	"notify-dispatch/internal/usecase/channel"
	"notify-dispatch/internal/usecase/history"
	"notify-dispatch/internal/usecase/notify"
	pkgconfig "notify-dispatch/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	version := getVersion()
	shutdownTracing := tracing.InstallProvider("notify-api", version)

	notifyConfig, err := notify.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load notify configuration", slog.Any("error", err))
		os.Exit(1)
	}

	stores, err := persistence.Open(context.Background(), os.Getenv("DATABASE_URL"), persistence.Options{Migrate: true})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	if err := metrics.Register(prometheus.DefaultRegisterer, metrics.ProcessAPI, version, stores.DB); err != nil {
		logger.Error("failed to register process metrics", slog.Any("error", err))
		os.Exit(1)
	}

	handler := setupServer(logger, stores, notifyConfig, version)
	runServer(logger, handler, version)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("tracer provider shutdown failed", slog.Any("error", err))
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

// setupServer builds the services and returns the HTTP handler with all
// routes and middleware.
func setupServer(logger *slog.Logger, stores *persistence.Stores, cfg notify.Config, version string) http.Handler {
	channels := &channel.Service{Repo: stores.Channels}
	if cfg.BlockPrivateTargets {
		channels.Guard = channel.PublicTargetsOnly
		logger.Info("private webhook targets are blocked")
	}
	seedChannels(logger, channels, cfg.ChannelsFile)

	registry := notifier.NewRegistry(notifier.Options{})
	logger.Info("channel adapters registered", slog.Any("types", registry.Types()))
	paging := pagination.LoadFromEnv()
	recorder := history.NewRecorder(stores.History)
	recorder.Paging = paging
	notifyService := notify.NewService(channels, recorder, registry, cfg)
	channels.OnChange = notifyService.Forget
	tester := notify.NewTester(registry, channels.Validate, cfg.AttemptTimeout, notify.WithStoredConfigs(channels))

	mux := http.NewServeMux()

	// ヘルスチェックエンドポイント
	mux.Handle("GET /health", &hhttp.HealthHandler{DB: stores.DB, Channels: notifyService, Version: version})
	mux.Handle("GET /ready", &hhttp.ReadyHandler{DB: stores.DB})
	mux.Handle("GET /live", &hhttp.LiveHandler{})
	mux.Handle("GET /metrics", hhttp.MetricsHandler())

	hnotify.Register(mux, hnotify.Deps{
		Configs:     channels,
		Dispatcher:  notifyService,
		Tester:      tester,
		History:     recorder,
		Paging:      paging,
		SendTimeout: cfg.SendTimeout,
	})

	origins := pkgconfig.GetEnvStringList("CORS_ALLOWED_ORIGINS", []string{"*"})
	logger.Info("CORS enabled", slog.Any("allowed_origins", origins))

	// Outermost first.
	return hhttp.Chain(mux,
		hhttp.CORS(hhttp.DefaultCORSConfig(origins)),
		requestid.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.MetricsMiddleware,
		hhttp.LimitRequestBody(1<<20), // 1MB limit
		tracing.Middleware,
	)
}

// seedChannels adds the configs from the bootstrap file, if one is set.
func seedChannels(logger *slog.Logger, svc *channel.Service, path string) {
	if path == "" {
		return
	}
	configs, err := channel.LoadBootstrapFile(path)
	if err != nil {
		logger.Error("failed to load channel bootstrap file", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	added, err := svc.Seed(context.Background(), configs)
	if err != nil {
		logger.Error("failed to seed channel configs", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("channel configs seeded", slog.Int("added", added), slog.Int("in_file", len(configs)))
}

// runServer serves until SIGINT or SIGTERM, then shuts down gracefully.
func runServer(logger *slog.Logger, handler http.Handler, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := pkgconfig.GetEnvString("HTTP_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Shutdown waits for in-flight sends, which run detached from ctx.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	cancel()
	logger.Info("server stopped")
}
