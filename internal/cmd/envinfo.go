package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opposia/waitlist/internal/config"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective configuration. Secrets are shown only as set or not set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(envInfoLines(cfg), "\n"), 0))
		return err
	},
}

func envInfoLines(cfg *config.Config) []string {
	version := crucible.GetVersion()

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(none)"
	}

	store := cfg.Store.Driver
	switch {
	case cfg.Store.Driver == "libsql" && cfg.Store.URL != "":
		store += " " + cfg.Store.URL
	case cfg.Store.Driver == "libsql":
		store += " " + cfg.Store.Path
	case cfg.Store.Driver == "redis":
		store += " " + cfg.Redis.Addr
	}

	origins := strings.Join(cfg.CORS.AllowedOrigins, ", ")
	if origins == "" {
		origins = "*"
	}

	return []string{
		"Waitlist Environment",
		"",
		fmt.Sprintf("Version:        %s (%s, built %s)", versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate),
		fmt.Sprintf("Gofulmen:       %s", version.Gofulmen),
		fmt.Sprintf("Crucible:       %s", version.Crucible),
		fmt.Sprintf("Go:             %s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		"",
		fmt.Sprintf("Config file:    %s", configFile),
		fmt.Sprintf("Listen:         %s:%d", cfg.Server.Host, cfg.Server.Port),
		fmt.Sprintf("Body limit:     %d bytes", cfg.Server.MaxBodyBytes),
		fmt.Sprintf("Store:          %s", store),
		fmt.Sprintf("Rate limit:     %d per %s (%s)", cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.Backend),
		fmt.Sprintf("Strict dedup:   %t", cfg.Waitlist.StrictDedup),
		fmt.Sprintf("Notify:         %s to %s", cfg.Notify.Driver, valueOrUnset(cfg.Notify.To)),
		fmt.Sprintf("Notify API key: %s", secretStatus(cfg.Notify.APIKey)),
		fmt.Sprintf("Admin token:    %s", secretStatus(cfg.Admin.Token)),
		fmt.Sprintf("CORS origins:   %s", origins),
		fmt.Sprintf("Log level:      %s", cfg.Logging.Level),
		fmt.Sprintf("Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port),
		fmt.Sprintf("Env prefix:     %s", config.EnvPrefix),
	}
}

func secretStatus(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(not set)"
	}
	return "(set)"
}

func valueOrUnset(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(not set)"
	}
	return v
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
