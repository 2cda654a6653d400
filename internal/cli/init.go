// Package cli wires configuration, logging and storage into the
// expenses command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"

	"expenses/internal/amqp"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/services"
	"expenses/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the TOML file at path when given, then the
// environment, and validates the result.
func LoadAndValidateConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger at the configured level and makes
// it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Component: applog.ComponentApp,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// InitSQLite opens the store, creating the file and schema when missing.
func InitSQLite(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", dbPath, err)
	}
	logger.WithComponent(applog.ComponentStorage).Info("SQLite store ready", "path", dbPath)
	return repo, nil
}

// NewExpenseService opens the store and, when configured, the event
// publisher. A broker that cannot be reached disables events instead of
// failing startup.
func NewExpenseService(ctx context.Context, cfg *config.Config, logger *applog.Logger, m *metrics.Metrics) (*services.ExpenseService, error) {
	repo, err := InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}

	var publisher services.EventPublisher
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("Change events disabled: broker unreachable", applog.FieldError, err)
		} else {
			publisher = client
		}
	}

	return services.NewExpenseService(repo, publisher, logger, m), nil
}
