package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joao-fontenele/stationery-storefront/internal/config"
)

const usage = "usage: migrate <up|down|version|force <version>>"

// migrator is the subset of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

func main() {
	cfg, err := config.Load("migrate", os.Getenv(config.PathEnv))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.Log.Pretty = true
	logger := config.NewLogger(cfg.Log, os.Stdout)

	flag.Parse()
	if flag.NArg() < 1 {
		logger.Error(usage)
		os.Exit(1)
	}
	if cfg.Postgres.URL == "" {
		logger.Error("postgres.url is required")
		os.Exit(1)
	}

	m, err := migrate.New(cfg.Migrations.Path, cfg.Postgres.URL)
	if err != nil {
		logger.Error("failed to open migrations", "source", cfg.Migrations.Path, "error", err)
		os.Exit(1)
	}

	runErr := run(m, flag.Args(), logger)
	_, _ = m.Close()
	if runErr != nil {
		logger.Error("migrate failed", "command", flag.Arg(0), "error", runErr)
		os.Exit(1)
	}
}

func run(m migrator, args []string, logger *slog.Logger) error {
	switch args[0] {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already current")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("storefront schema migrated")
		return nil

	case "down":
		err := m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("nothing to roll back")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("rolled back one migration")
		return nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("schema not initialized")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
		return nil

	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(version); err != nil {
			return err
		}
		logger.Info("schema version forced", "version", version)
		return nil
	}

	return fmt.Errorf("unknown command %q", args[0])
}
