package waitlist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix starts the sorted-set key of each client window.
const RateLimitKeyPrefix = "waitlist-ratelimit:"

// RedisLimiter keeps sliding windows in Redis sorted sets so several
// instances share one budget per client.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit attempts per client within window. A nil now
// uses time.Now.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, now func() time.Time) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, limit: limit, window: window, now: now}
}

// slidingWindowScript trims the window, counts it and records the attempt in
// one step so concurrent requests from a client cannot overshoot the limit.
// KEYS[1] window key; ARGV cutoff, limit, now, member, ttl in ms.
var slidingWindowScript = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[4])
redis.call("PEXPIRE", KEYS[1], ARGV[5])
return 1
`)

func (l *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	now := l.now()
	cutoff := strconv.FormatInt(now.Add(-l.window).UnixMilli(), 10)

	// every attempt needs a distinct member
	allowed, err := slidingWindowScript.Run(ctx, l.client,
		[]string{RateLimitKeyPrefix + clientKey},
		cutoff, l.limit, now.UnixMilli(), uuid.NewString(), l.window.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit window for %s: %w", clientKey, err)
	}
	return allowed == 1, nil
}
