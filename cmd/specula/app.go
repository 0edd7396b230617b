package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specula/internal/config"
	"github.com/fyrsmithlabs/specula/internal/generation"
	"github.com/fyrsmithlabs/specula/internal/logging"
	"github.com/fyrsmithlabs/specula/internal/state"
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
	"github.com/fyrsmithlabs/specula/internal/workflow"
)

const telemetryShutdownTimeout = 5 * time.Second

// app holds the dependencies one command invocation runs against.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	svc    workflow.Service
}

// loadConfig loads the configuration and applies explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("state-file") {
		cfg.State.File = stateFile
	}
	if flags.Changed("database-url") {
		cfg.Storage.DatabaseURL = config.Secret(databaseURL)
	}
	if flags.Changed("storage-driver") {
		cfg.Storage.Driver = storageDriver
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp wires telemetry, logging, storage and the workflow service.
// backend may be nil for commands that never generate text.
func newApp(ctx context.Context, cfg *config.Config, backend generation.Backend) (*app, error) {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging, cfg.Observability.EnableTelemetry)
	if err != nil {
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := storage.Open(ctx, cfg.StorageOptions(), logger.Underlying())
	if err != nil {
		_ = logger.Sync()
		shutdownTelemetry(tel)
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger.Underlying()),
		workflow.WithTelemetry(tel),
	}
	if backend != nil {
		opts = append(opts, workflow.WithBackend(backend))
	}
	svc, err := workflow.NewService(state.NewFileStore(cfg.State.File), store, opts...)
	if err != nil {
		_ = store.Close()
		_ = logger.Sync()
		shutdownTelemetry(tel)
		return nil, err
	}

	logger.Debug(ctx, "specula initialized",
		zap.String("state_file", cfg.State.File),
		zap.String("storage_driver", cfg.StorageOptions().ResolveDriver()),
		zap.Bool("backend", backend != nil),
		zap.Bool("telemetry", tel.IsEnabled()))

	return &app{cfg: cfg, logger: logger, tel: tel, svc: svc}, nil
}

// Close releases the store and flushes telemetry and logs.
func (a *app) Close() error {
	err := a.svc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	err = errors.Join(err, a.tel.Shutdown(ctx))
	// Sync fails on terminals; it is best-effort.
	_ = a.logger.Sync()
	return err
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	_ = tel.Shutdown(ctx)
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, backend func(*config.Config) (generation.Backend, error), fn func(context.Context, *app) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var b generation.Backend
	if backend != nil {
		if b, err = backend(cfg); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, b)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, a)
}

// readFile reads a user supplied input file.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
