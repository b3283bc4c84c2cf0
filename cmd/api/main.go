package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/mergington/internal/api"
	"example.com/mergington/internal/auth"
	"example.com/mergington/internal/config"
	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/logging"
	"example.com/mergington/internal/outbox"
	"example.com/mergington/internal/persistence"
	httptransport "example.com/mergington/internal/transport/http"
	"example.com/mergington/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		slog.Error("configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("activities api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := persistence.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	service := domain.NewService(backend.Store)

	if cfg.SeedOnStart {
		result, err := persistence.Seed(ctx, service, persistence.SampleActivities, false)
		if err != nil {
			return err
		}
		logger.Info("sample data", "skipped", result.Skipped, "activities", result.Activities, "users", result.Users)
	}

	var dispatcher *outbox.Dispatcher
	if cfg.OutboxActive() {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
			outbox.WithLogger(logger.With("component", "outbox")),
			outbox.WithRetryDelay(cfg.DLQBaseDelay))
		go dispatcher.Start(ctx)
	}

	router := mux.NewRouter()
	router.Use(httptransport.Instrument(logger))

	if !cfg.AdminConfigured() {
		logger.Warn("admin endpoints reject every caller; set ADMIN_USER_IDS or JWT_SECRET")
	}
	gate := auth.NewAdminGate(cfg.AdminUserIDs, auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, api.WriteAuthError)
	api.NewHandler(service).RegisterRoutes(router, gate.Wrap)
	assets := web.Static()
	if cfg.StaticDir != "" {
		assets = os.DirFS(cfg.StaticDir)
	}
	api.RegisterStatic(router, assets)

	var metricsSrv *http.Server
	if cfg.MetricsAddress == "" {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	} else {
		metricsSrv = httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress}, promhttp.Handler(), logger)
		go func() {
			logger.Info("metrics listening", "address", cfg.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	server := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.HTTPAddress}, httptransport.CORS(cfg.CORSOrigin)(router), logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("activities api listening", "address", cfg.HTTPAddress, "store", cfg.StoreDriver, "outbox", cfg.OutboxActive())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownCh:
		logger.Info("shutdown requested", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return nil
}
