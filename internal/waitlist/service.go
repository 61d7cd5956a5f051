// Package waitlist implements signup intake: validation, per-client rate
// limiting, duplicate suppression, persistence and operator notification.
package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/opposia/waitlist/internal/metrics"
)

var (
	ErrInvalidEmail = errors.New("valid email is required")
	ErrRateLimited  = errors.New("too many requests")
	ErrStorage      = errors.New("waitlist storage failure")
)

// Outcome is the result of an accepted signup request.
type Outcome int

const (
	// Created means a new record was written.
	Created Outcome = iota + 1
	// Duplicate means the email was already on the list; nothing was written.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return metrics.SignupCreated
	case Duplicate:
		return metrics.SignupDuplicate
	default:
		return "unknown"
	}
}

// Options configures a Service. Store and Limiter are required.
type Options struct {
	Store       *Store
	Limiter     Limiter
	Notifier    Notifier
	StrictDedup bool
	Clock       func() time.Time
	Logger      *logging.Logger
}

// Service owns the signup flow.
type Service struct {
	store       *Store
	limiter     Limiter
	notifier    Notifier
	strictDedup bool
	now         func() time.Time
	logger      *logging.Logger
}

func NewService(opts Options) *Service {
	s := &Service{
		store:       opts.Store,
		limiter:     opts.Limiter,
		notifier:    opts.Notifier,
		strictDedup: opts.StrictDedup,
		now:         opts.Clock,
		logger:      opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.limiter == nil {
		s.limiter = NewMemoryLimiter(DefaultLimit, DefaultWindow)
	}
	return s
}

// Signup registers rawEmail for clientKey.
//
// Errors: ErrInvalidEmail, ErrRateLimited, or an error wrapping ErrStorage.
// A limiter backend failure admits the request.
func (s *Service) Signup(ctx context.Context, rawEmail, clientKey string) (Outcome, error) {
	email := NormalizeEmail(rawEmail)
	if !ValidEmail(email) {
		metrics.RecordSignup(metrics.SignupInvalid)
		return 0, ErrInvalidEmail
	}

	allowed, err := s.limiter.Allow(ctx, clientKey)
	switch {
	case err != nil:
		metrics.RecordLimiterError()
		s.logWarn("Rate limiter unavailable, admitting request",
			zap.String("client", clientKey),
			zap.Error(err))
	case !allowed:
		metrics.RecordRateLimited()
		s.logInfo("Signup rate limited", zap.String("client", clientKey))
		return 0, ErrRateLimited
	}

	exists, err := s.store.Exists(ctx, email)
	if err != nil {
		metrics.RecordSignup(metrics.SignupFailed)
		return 0, err
	}
	if exists {
		metrics.RecordSignup(metrics.SignupDuplicate)
		return Duplicate, nil
	}

	if s.strictDedup {
		reserved, err := s.store.Reserve(ctx, email)
		if err != nil {
			metrics.RecordSignup(metrics.SignupFailed)
			return 0, err
		}
		if !reserved {
			metrics.RecordSignup(metrics.SignupDuplicate)
			return Duplicate, nil
		}
	}

	timestamp := FormatTimestamp(s.now())
	if err := s.store.Put(ctx, email, timestamp); err != nil {
		if s.strictDedup {
			if rerr := s.store.Release(ctx, email); rerr != nil {
				s.logError("Failed to release email reservation",
					zap.String("email", email),
					zap.Error(rerr))
			}
		}
		metrics.RecordSignup(metrics.SignupFailed)
		return 0, err
	}

	metrics.RecordSignup(metrics.SignupCreated)
	s.logInfo("New waitlist signup",
		zap.String("email", email),
		zap.String("timestamp", timestamp))

	if s.notifier != nil {
		s.notifier.Notify(ctx, Signup{Email: email, Timestamp: timestamp})
	}
	return Created, nil
}

// List returns every stored signup.
func (s *Service) List(ctx context.Context) ([]Signup, error) {
	return s.store.ListAll(ctx)
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Service) logWarn(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

func (s *Service) logError(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Error(msg, fields...)
	}
}
