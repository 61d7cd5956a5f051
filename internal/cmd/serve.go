package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/opposia/waitlist/internal/config"
	errwrap "github.com/opposia/waitlist/internal/errors"
	"github.com/opposia/waitlist/internal/metrics"
	"github.com/opposia/waitlist/internal/observability"
	"github.com/opposia/waitlist/internal/server"
)

var (
	serverPort int
	serverHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the waitlist HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: readiness goes to 503, in-flight requests
    finish, pending notifications are drained, then the store is closed
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file and apply the log level`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	observability.InitServerLogger(observability.ServerLoggerOptions{
		Service:   config.AppName,
		Level:     cfg.Logging.Level,
		Namespace: config.AppName,
	})
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}
	}
	metrics.SetServerStartTime(time.Now().Unix())

	logger.Info("Initializing server",
		zap.String("service", config.AppName),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	app, err := newApplication(cmd.Context(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize signup stack", zap.Error(err))
		return errwrap.WrapInternal(cmd.Context(), err, "startup failed")
	}

	srv := server.New(cfg, server.Deps{Service: app.service, Health: app.health})

	registerShutdown(srv, app, cfg.Server.ShutdownTimeout)
	registerReload()

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	go func() {
		if err := signals.Listen(cmd.Context()); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		_ = app.Close()
		return errwrap.WrapInternal(cmd.Context(), err, "server error")
	}
	return nil
}

// registerShutdown installs the drain sequence. Handlers run LIFO, so the
// HTTP server stops first and the logger flushes last.
func registerShutdown(srv *server.Server, app *application, timeout time.Duration) {
	logger := observability.ServerLogger
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	signals.OnShutdown(func(ctx context.Context) error {
		if err := logger.Sync(); err != nil {
			// stderr may already be closed
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		if err := app.Close(); err != nil {
			logger.Warn("Store close failed", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		drainCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if !app.Drain(drainCtx) {
			logger.Warn("Notification drain timed out; pending emails dropped",
				zap.Duration("timeout", timeout))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})
}

// registerReload applies the parts of the config that can change without a
// restart. Everything else is logged and ignored until the next start.
func registerReload() {
	logger := observability.ServerLogger

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				logger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "config reload failed")
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			logger.Error("Reloaded config is invalid; keeping current settings", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "config reload failed")
		}

		observability.SetLogLevel(logger, cfg.Logging.Level)
		logger.Info("Configuration reloaded",
			zap.String("file", viper.ConfigFileUsed()),
			zap.String("log_level", cfg.Logging.Level))
		return nil
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
