package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/screwyprof/bondaudit/migrator"
	"github.com/screwyprof/bondaudit/migrator/config"
	"github.com/screwyprof/bondaudit/pkg/logger"
	"github.com/screwyprof/bondaudit/pkg/pgxdb"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

func main() {
	// Load configuration from environment
	cfg := config.New()

	// Initialize logger and set as default
	log, closeLog, err := logger.NewWithFile(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
		LogFile:          cfg.LogFile,
	})
	if err != nil {
		slog.Error("Failed to set up logging", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(log)

	log.Info("Starting database migrator",
		slog.String("migrationsDir", cfg.MigrationsDir),
		slog.String("version", version),
		slog.String("date", date),
	)

	// Create a context that cancels on SIGINT/SIGTERM _or_ when the timeout elapses
	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(baseCtx, cfg.OperationTimeout)
	defer cancel()

	// Connect to database
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	pending, err := migrator.Pending(db, cfg.MigrationsDir)
	if err != nil {
		log.Error("Failed to plan migrations", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.DryRun {
		log.Info("Dry run, no migrations applied", slog.Any("pending", pending))
		return
	}
	log.Info("Applying database migrations", slog.Any("pending", pending))

	applied, err := migrator.ApplyMigrations(db, cfg.MigrationsDir)
	if err != nil {
		log.Error("Failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("Database migrator completed successfully", slog.Int("applied", applied))
}
