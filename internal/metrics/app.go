package metrics

import (
	"time"

	"github.com/opposia/waitlist/internal/observability"
)

// Waitlist metrics following Prometheus conventions
var (
	SignupsTotal       = "waitlist_signups_total"
	RateLimitedTotal   = "waitlist_rate_limited_total"
	NotificationsTotal = "waitlist_notifications_total"
	LimiterErrorsTotal = "waitlist_ratelimit_errors_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// Signup results
const (
	SignupCreated   = "created"
	SignupDuplicate = "duplicate"
	SignupInvalid   = "invalid"
	SignupFailed    = "error"
)

// Notification outcomes
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

// RecordSignup counts a signup attempt by result.
func RecordSignup(result string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SignupsTotal,
			1,
			map[string]string{"result": result},
		)
	}
}

// RecordRateLimited counts a signup rejected by the rate limiter.
func RecordRateLimited() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RateLimitedTotal, 1, nil)
	}
}

// RecordLimiterError counts limiter backend failures that were admitted.
func RecordLimiterError() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(LimiterErrorsTotal, 1, nil)
	}
}

// RecordNotification counts an operator notification by outcome and driver.
func RecordNotification(status string, driver string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			NotificationsTotal,
			1,
			map[string]string{
				"status": status,
				"driver": driver,
			},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
