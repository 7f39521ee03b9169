package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/stationery-storefront/internal/config"
	"github.com/joao-fontenele/stationery-storefront/internal/gateway"
	"github.com/joao-fontenele/stationery-storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("gateway", os.Getenv(config.PathEnv))
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

	for name, url := range map[string]string{
		"services.storefront": cfg.Services.Storefront,
		"services.orders":     cfg.Services.Orders,
		"services.inventory":  cfg.Services.Inventory,
	} {
		if url == "" {
			logger.Error("missing service url", "key", name)
			os.Exit(1)
		}
	}

	httpClient := telemetry.Client(&http.Client{
		Timeout: cfg.HTTP.ClientTimeout,
		// Redirects from upstream are the browser's to follow.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	})

	handler := gateway.NewHandler(
		gateway.NewServiceProxy(cfg.Services.Storefront, httpClient),
		gateway.NewServiceProxy(cfg.Services.Orders, httpClient),
		gateway.NewServiceProxy(cfg.Services.Inventory, httpClient),
		logger,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", telemetry.WithHTTPRoute(handler.HandleRoot))
	mux.HandleFunc("/", telemetry.WithHTTPRoute(handler.HandleStorefront))
	mux.HandleFunc("GET /admin/orders", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /admin/orders/{id}", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("PATCH /admin/orders/{id}/status", telemetry.WithHTTPRoute(handler.HandleOrders))
	mux.HandleFunc("GET /admin/inventory/stock", telemetry.WithHTTPRoute(handler.HandleInventory))
	mux.HandleFunc("GET /admin/inventory/stock/{productId}", telemetry.WithHTTPRoute(handler.HandleInventory))
	mux.HandleFunc("POST /admin/inventory/stock/{productId}/reserve", telemetry.WithHTTPRoute(handler.HandleInventory))
	mux.HandleFunc("POST /admin/inventory/stock/{productId}/release", telemetry.WithHTTPRoute(handler.HandleInventory))
	mux.Handle("GET /metrics", providers.MetricsHandler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      telemetry.ServerHandler(mux, cfg.Service),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.HTTP.Port)
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
