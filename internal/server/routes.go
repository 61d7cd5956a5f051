package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/opposia/waitlist/internal/server/handlers"
)

const (
	adminSignalRate  = 10
	adminSignalBurst = 5
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	if s.cfg.Health.Enabled {
		hm := s.deps.Health
		s.router.Get("/health", hm.HealthHandler)
		s.router.Get("/health/live", hm.LivenessHandler)
		s.router.Get("/health/ready", hm.ReadinessHandler)
		s.router.Get("/health/startup", hm.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)

	if s.cfg.Metrics.Enabled {
		s.router.Get("/metrics", MetricsHandler)
	}

	if s.deps.Service != nil {
		wl := handlers.NewWaitlistHandler(s.deps.Service, s.cfg.Admin.Token)
		s.router.Post("/waitlist", wl.Signup)
		s.router.Get("/waitlist", wl.List)
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the gofulmen signal endpoint behind the same
// operator token as the signup list. Without a token neither is reachable.
func (s *Server) registerAdminEndpoint() {
	token := s.cfg.Admin.Token
	if token == "" {
		logWarn("Admin token not set; GET /waitlist answers 503 and /admin/signal is disabled")
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: token,
		RateLimit: adminSignalRate,
		RateBurst: adminSignalBurst,
		Manager:   nil, // default global manager
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	logInfo("Admin signal endpoint enabled",
		zap.String("path", "/admin/signal"),
		zap.Int("rate_limit_per_min", adminSignalRate),
		zap.Int("burst", adminSignalBurst))
}
