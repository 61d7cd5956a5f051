package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/opposia/waitlist/internal/kv"
)

const (
	// KeyPrefix starts every signup record key.
	KeyPrefix = "waitlist:"

	// ReservationPrefix starts the per-email keys written in strict mode.
	ReservationPrefix = "waitlist-email:"

	// TimestampFormat is ISO-8601 UTC with millisecond precision.
	TimestampFormat = "2006-01-02T15:04:05.000Z"
)

// Signup is one stored waitlist entry.
type Signup struct {
	Email     string `json:"email"`
	Timestamp string `json:"timestamp"`
	Notified  bool   `json:"notified"`
}

// FormatTimestamp renders t in the record timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// SignupKey builds the record key for a signup.
func SignupKey(timestamp, email string) string {
	return KeyPrefix + timestamp + ":" + email
}

// Store persists signups in a kv.Store.
type Store struct {
	kv     kv.Store
	logger *logging.Logger
}

// NewStore wraps a key-value store. logger may be nil.
func NewStore(store kv.Store, logger *logging.Logger) *Store {
	return &Store{kv: store, logger: logger}
}

// Put writes a new record with notified=false.
func (s *Store) Put(ctx context.Context, email, timestamp string) error {
	value, err := json.Marshal(Signup{Email: email, Timestamp: timestamp})
	if err != nil {
		return fmt.Errorf("%w: encode signup: %w", ErrStorage, err)
	}
	if err := s.kv.Set(ctx, SignupKey(timestamp, email), value); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// ListAll returns every stored signup. Records that fail to decode are
// skipped and logged.
func (s *Store) ListAll(ctx context.Context) ([]Signup, error) {
	entries, err := s.kv.GetByPrefix(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	signups := make([]Signup, 0, len(entries))
	for _, entry := range entries {
		var signup Signup
		if err := json.Unmarshal(entry.Value, &signup); err != nil {
			if s.logger != nil {
				s.logger.Warn("Skipping unreadable signup record",
					zap.String("key", entry.Key),
					zap.Error(err))
			}
			continue
		}
		signups = append(signups, signup)
	}
	return signups, nil
}

// Exists reports whether any record holds email. It scans every record.
func (s *Store) Exists(ctx context.Context, email string) (bool, error) {
	entries, err := s.kv.GetByPrefix(ctx, KeyPrefix)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	suffix := ":" + email
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Key, suffix) {
			continue
		}
		var signup Signup
		if err := json.Unmarshal(entry.Value, &signup); err == nil && signup.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// Reserve claims email atomically. It reports false when another signup
// already holds the reservation.
func (s *Store) Reserve(ctx context.Context, email string) (bool, error) {
	ok, err := s.kv.SetIfAbsent(ctx, ReservationPrefix+email, []byte(email))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return ok, nil
}

// Release drops a reservation taken by Reserve.
func (s *Store) Release(ctx context.Context, email string) error {
	if err := s.kv.Delete(ctx, ReservationPrefix+email); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Ping checks the underlying store.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// Driver names the underlying store backend.
func (s *Store) Driver() string {
	return s.kv.Driver()
}
