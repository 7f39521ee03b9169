package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/stationery-storefront/internal/catalog"
	"github.com/joao-fontenele/stationery-storefront/internal/checkout"
	"github.com/joao-fontenele/stationery-storefront/internal/config"
	"github.com/joao-fontenele/stationery-storefront/internal/customer"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
	"github.com/joao-fontenele/stationery-storefront/internal/messaging"
	"github.com/joao-fontenele/stationery-storefront/internal/orders"
	"github.com/joao-fontenele/stationery-storefront/internal/session"
	"github.com/joao-fontenele/stationery-storefront/internal/storage"
	"github.com/joao-fontenele/stationery-storefront/internal/storefront"
	"github.com/joao-fontenele/stationery-storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("storefront", os.Getenv(config.PathEnv))
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

	var db *sql.DB
	if cfg.Postgres.URL != "" {
		db, err = telemetry.OpenDB("postgres", cfg.Postgres.URL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
	}

	clientStorage, closeStorage, err := openStorage(ctx, cfg, db)
	if err != nil {
		logger.Error("failed to open client storage", "error", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}
	defer closeStorage()

	var source catalog.Source = catalog.SeedSource()
	var directory customer.Directory = customer.NewMemoryDirectory()
	var checkoutOpts []checkout.Option

	if cfg.Catalog.Source == "postgres" {
		if db == nil {
			logger.Error("postgres catalog requires postgres.url")
			os.Exit(1)
		}
		source = catalog.NewPostgresSource(db)
	}

	if db != nil {
		directory = customer.NewPostgresDirectory(db)
		checkoutOpts = append(checkoutOpts, checkout.WithRecorder(orders.NewOrderRepository(db)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		checkoutOpts = append(checkoutOpts, checkout.WithPublisher(producer))
	}

	delay := latency.New(cfg.Latency.Enabled)

	products := catalog.NewStore(source, delay, logger,
		catalog.WithQueryDelay(cfg.Latency.CatalogQuery),
		catalog.WithLookupDelay(cfg.Latency.CatalogLookup),
	)

	sessions := session.NewManager(clientStorage, directory, locale.EmbeddedLoader(), delay, logger, cfg.Sessions.IdleTTL,
		customer.WithLookupDelay(cfg.Latency.CustomerLookup),
		customer.WithRegisterDelay(cfg.Latency.CustomerRegister),
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.Sessions.SweepInterval)

	checkoutOpts = append(checkoutOpts, checkout.WithProcessingDelay(cfg.Latency.Checkout))
	orderService := checkout.NewService(delay, logger, checkoutOpts...)

	handler := storefront.NewHandler(products, sessions, orderService, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", providers.MetricsHandler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      telemetry.ServerHandler(mux, cfg.Service),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("starting storefront service",
			"port", cfg.HTTP.Port,
			"catalog", cfg.Catalog.Source,
			"storage", cfg.Storage.Driver,
			"latency", cfg.Latency.Enabled,
		)
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

var errMissingPostgres = errors.New("postgres storage requires postgres.url")

func openStorage(ctx context.Context, cfg *config.Config, db *sql.DB) (storage.Storage, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		if db == nil {
			return nil, nil, errMissingPostgres
		}
		return storage.NewPostgres(db), func() {}, nil

	case "sqlite":
		sqliteDB, err := telemetry.OpenDB("sqlite", cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.NewSQLite(ctx, sqliteDB)
		if err != nil {
			_ = sqliteDB.Close()
			return nil, nil, err
		}
		return s, func() { _ = sqliteDB.Close() }, nil

	default:
		return storage.NewMemory(), func() {}, nil
	}
}
