package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/stationery-storefront/internal/config"
	"github.com/joao-fontenele/stationery-storefront/internal/email"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
	"github.com/joao-fontenele/stationery-storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("email", os.Getenv(config.PathEnv))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stdout)

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
	defer func() { _ = providers.Shutdown(ctx) }()

	handler := email.NewHandler(latency.New(cfg.Latency.Enabled), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(handler.HandleSend))
	mux.Handle("GET /metrics", providers.MetricsHandler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      telemetry.ServerHandler(mux, cfg.Service),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting email service", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
