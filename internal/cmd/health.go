package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opposia/waitlist/internal/notify"
	"github.com/opposia/waitlist/internal/observability"
)

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify that the service could start with the current configuration:
the config validates, the store answers a ping and the notification driver
is fully configured.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		logger.Info("✅ Configuration valid")

		if _, err := notify.New(cfg.Notify, logger); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Notification driver misconfigured", err)
			return
		}
		logger.Info("✅ Notification driver configured", zap.String("driver", cfg.Notify.Driver))

		ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
		defer cancel()

		app, err := openStorage(ctx, cfg, nil)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Store unavailable", err)
			return
		}
		defer app.Close() // nolint:errcheck // best-effort cleanup

		if err := app.store.Ping(ctx); err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Store ping failed", err)
			return
		}
		logger.Info("✅ Store reachable", zap.String("driver", app.store.Driver()))

		if app.redis != nil {
			if err := app.redis.Ping(ctx).Err(); err != nil {
				ExitWithCode(logger, foundry.ExitFailure, "Redis ping failed", err)
				return
			}
			logger.Info("✅ Redis reachable", zap.String("addr", cfg.Redis.Addr))
		}

		if cfg.Admin.Token == "" {
			logger.Warn("Admin token not set; operator list endpoint will answer 503")
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "timeout for backend checks")
}
