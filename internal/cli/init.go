// Package cli provides the start-up helpers shared by the commands.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"glowbudget/internal/backend"
	"glowbudget/internal/config"
	"glowbudget/internal/log"
)

// NewLogger builds the application logger from the LOG_LEVEL and LOG_FORMAT
// settings, writing to w.
func NewLogger(cfg *config.Config, w io.Writer) *log.Logger {
	return log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		JSON:      cfg.JSONLogs(),
		Output:    w,
	})
}

// SetupLogger initializes structured logging on stdout and sets it as the
// default logger.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := NewLogger(cfg, os.Stdout)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on failure. Problems are reported
// on stderr since the logger depends on the configuration.
func LoadAndValidateConfig() *config.Config {
	bootstrap := log.New(log.Config{Output: os.Stderr, Component: log.ComponentApp})
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("Configuration could not be loaded", log.FieldError, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		bootstrap.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the storage backend and optional notifier.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}
