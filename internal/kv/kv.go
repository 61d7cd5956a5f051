// Package kv provides the ordered key-value collaborator that holds waitlist
// state: point writes, conditional writes and prefix scans over string keys.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/opposia/waitlist/internal/config"
)

const (
	DriverMemory = "memory"
	DriverLibsql = "libsql"
	DriverRedis  = "redis"
)

// ErrNotInitialized is returned by operations on a nil or closed store.
var ErrNotInitialized = errors.New("kv store is not initialized")

// Entry is one key/value pair yielded by a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is an ordered map keyed by string.
//
// GetByPrefix returns entries in ascending key order for every bundled
// backend; callers must not rely on more than "some order".
type Store interface {
	// Set writes value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// SetIfAbsent writes value only when key does not exist yet and reports
	// whether the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetByPrefix returns every entry whose key starts with prefix.
	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error

	// Driver names the backend.
	Driver() string
}

// Open initializes a store for the configured driver. rdb is required for the
// redis driver and ignored otherwise.
func Open(ctx context.Context, cfg config.StoreConfig, rdb *redis.Client) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverLibsql
	}

	if ctx == nil {
		ctx = context.Background()
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverLibsql:
		return OpenLibsql(ctx, cfg)
	case DriverRedis:
		if rdb == nil {
			return nil, errors.New("redis store requires a redis client")
		}
		return NewRedis(ctx, rdb)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("key is required")
	}
	return nil
}
