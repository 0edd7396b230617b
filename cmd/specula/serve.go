package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	speculahttp "github.com/fyrsmithlabs/specula/internal/http"
)

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config, 8088)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow over HTTP",
	Long: `Serve step, validate, advance, init-db, state and audit as a JSON API
under /api/v1, plus /health and Prometheus /metrics.

The server shuts down gracefully on SIGINT or SIGTERM.

Examples:
  specula serve --port 8088 --storage-driver badger`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		if cmd.Flags().Changed("host") {
			a.cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			a.cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, a)
	})
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured timeout.
func serve(ctx context.Context, a *app) error {
	srv, err := speculahttp.NewServer(a.svc, a.logger.Underlying(), &speculahttp.Config{
		Host:      a.cfg.Server.Host,
		Port:      a.cfg.Server.Port,
		Version:   version,
		Telemetry: a.tel,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info(context.Background(), "shutting down",
		zap.Duration("timeout", a.cfg.Server.ShutdownTimeout.Duration()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
