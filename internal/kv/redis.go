package kv

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/opposia/waitlist/internal/config"
)

const (
	scanBatchSize = 500
	mgetBatchSize = 200
)

// Redis is a Store on top of plain Redis string keys. The client is borrowed:
// Close leaves it open because the rate limiter may share it.
type Redis struct {
	client *redis.Client
}

// NewRedisClient builds a client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedis wraps client and verifies connectivity.
func NewRedis(ctx context.Context, client *redis.Client) (*Redis, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis store: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if r == nil || r.client == nil {
		return ErrNotInitialized
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

func (r *Redis) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if r == nil || r.client == nil {
		return false, ErrNotInitialized
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	ok, err := r.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("conditional write: %w", err)
	}
	return ok, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return ErrNotInitialized
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func (r *Redis) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	if r == nil || r.client == nil {
		return nil, ErrNotInitialized
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan prefix: %w", err)
	}

	// SCAN may repeat keys and yields no order.
	slices.Sort(keys)
	keys = slices.Compact(keys)

	entries := make([]Entry, 0, len(keys))
	for start := 0; start < len(keys); start += mgetBatchSize {
		end := min(start+mgetBatchSize, len(keys))
		batch := keys[start:end]

		values, err := r.client.MGet(ctx, batch...).Result()
		if err != nil {
			return nil, fmt.Errorf("read prefix values: %w", err)
		}
		for i, raw := range values {
			value, ok := raw.(string)
			if !ok {
				// deleted between SCAN and MGET
				continue
			}
			entries = append(entries, Entry{Key: batch[i], Value: []byte(value)})
		}
	}
	return entries, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrNotInitialized
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return nil
}

func (r *Redis) Driver() string {
	return DriverRedis
}

// escapeGlob quotes the characters Redis MATCH patterns treat specially.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
