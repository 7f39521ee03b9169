package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/stationery-storefront/internal/config"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
	"github.com/joao-fontenele/stationery-storefront/internal/messaging"
	"github.com/joao-fontenele/stationery-storefront/internal/telemetry"
	"github.com/joao-fontenele/stationery-storefront/internal/worker"
)

func main() {
	cfg, err := config.Load("worker", os.Getenv(config.PathEnv))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stdout)

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("kafka.brokers is required")
		os.Exit(1)
	}

	for name, url := range map[string]string{
		"services.email":     cfg.Services.Email,
		"services.orders":    cfg.Services.Orders,
		"services.inventory": cfg.Services.Inventory,
	} {
		if url == "" {
			logger.Error("missing service url", "key", name)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:    cfg.Service,
		ServiceVersion: cfg.Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, messaging.WithLogger(logger))
	defer func() { _ = consumer.Close() }()

	httpClient := telemetry.Client(&http.Client{Timeout: cfg.HTTP.ClientTimeout})

	notificationHandler := worker.NewNotificationHandler(
		cfg.Services.Email,
		cfg.Services.Orders,
		cfg.Services.Inventory,
		locale.EmbeddedLoader(),
		httpClient,
		logger,
	)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", providers.MetricsHandler)
	metricsServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
		_ = metricsServer.Close()
	}()

	logger.Info("starting notification worker", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
