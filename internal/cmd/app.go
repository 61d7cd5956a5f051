package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/opposia/waitlist/internal/config"
	"github.com/opposia/waitlist/internal/kv"
	"github.com/opposia/waitlist/internal/notify"
	"github.com/opposia/waitlist/internal/observability"
	"github.com/opposia/waitlist/internal/server/handlers"
	"github.com/opposia/waitlist/internal/waitlist"
)

// application is the wired signup stack shared by serve and the operator
// subcommands.
type application struct {
	cfg        *config.Config
	redis      *redis.Client
	kv         kv.Store
	store      *waitlist.Store
	dispatcher *waitlist.Dispatcher
	service    *waitlist.Service
	health     *handlers.HealthManager
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Store.Driver == kv.DriverRedis || cfg.RateLimit.Backend == "redis"
}

// openStorage connects the key-value backend and, when configured, the shared
// redis client. Subcommands that only read signups stop here.
func openStorage(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*application, error) {
	app := &application{cfg: cfg}

	if usesRedis(cfg) {
		app.redis = kv.NewRedisClient(cfg.Redis)
	}

	store, err := kv.Open(ctx, cfg.Store, app.redis)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	app.kv = store
	app.store = waitlist.NewStore(store, logger)
	return app, nil
}

// newApplication wires the full signup flow for the HTTP service.
func newApplication(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*application, error) {
	app, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sender, err := notify.New(cfg.Notify, logger)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("configure notifications: %w", err)
	}
	app.dispatcher = waitlist.NewDispatcher(sender, cfg.Notify, logger)

	app.service = waitlist.NewService(waitlist.Options{
		Store:       app.store,
		Limiter:     newLimiter(cfg, app.redis),
		Notifier:    app.dispatcher,
		StrictDedup: cfg.Waitlist.StrictDedup,
		Logger:      logger,
	})

	app.health = handlers.NewHealthManager(versionInfo.Version)
	app.health.RegisterChecker("store", handlers.HealthCheckFunc(app.store.Ping))
	if app.redis != nil {
		client := app.redis
		app.health.RegisterChecker("redis", handlers.HealthCheckFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
	if cfg.Metrics.Enabled {
		app.health.RegisterChecker("telemetry", handlers.HealthCheckFunc(func(context.Context) error {
			if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
				return errors.New("telemetry system not initialized")
			}
			return nil
		}))
	}

	if logger != nil {
		logger.Info("Signup stack ready",
			zap.String("store", app.store.Driver()),
			zap.String("ratelimit_backend", cfg.RateLimit.Backend),
			zap.Int("ratelimit_limit", cfg.RateLimit.Limit),
			zap.Duration("ratelimit_window", cfg.RateLimit.Window),
			zap.String("notify_driver", sender.Name()),
			zap.Bool("strict_dedup", cfg.Waitlist.StrictDedup))
	}
	return app, nil
}

func newLimiter(cfg *config.Config, client *redis.Client) waitlist.Limiter {
	if cfg.RateLimit.Backend == "redis" && client != nil {
		return waitlist.NewRedisLimiter(client, cfg.RateLimit.Limit, cfg.RateLimit.Window, time.Now)
	}
	return waitlist.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window,
		waitlist.WithSweepProbability(cfg.RateLimit.SweepProbability))
}

// Drain waits for in-flight notifications until ctx expires.
func (a *application) Drain(ctx context.Context) bool {
	if a.dispatcher == nil {
		return true
	}
	return a.dispatcher.Drain(ctx)
}

// Close releases the store and the redis client.
func (a *application) Close() error {
	var errs []error
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
