package waitlist

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

const (
	DefaultLimit            = 3
	DefaultWindow           = 5 * time.Minute
	DefaultSweepProbability = 0.01
)

// Limiter decides whether a client may attempt another signup.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

// MemoryLimiter is a per-client sliding-window limiter held in process
// memory. Rejected attempts are not recorded.
type MemoryLimiter struct {
	mu               sync.Mutex
	windows          map[string][]int64
	limit            int
	window           time.Duration
	sweepProbability float64
	now              func() time.Time
	random           func() float64
}

// LimiterOption customizes a MemoryLimiter.
type LimiterOption func(*MemoryLimiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRandom replaces the sweep's random source; f returns values in [0,1).
func WithRandom(f func() float64) LimiterOption {
	return func(l *MemoryLimiter) {
		if f != nil {
			l.random = f
		}
	}
}

// WithSweepProbability sets the chance that a call prunes idle clients.
func WithSweepProbability(p float64) LimiterOption {
	return func(l *MemoryLimiter) {
		l.sweepProbability = p
	}
}

// NewMemoryLimiter allows limit attempts per client within window.
// Non-positive values fall back to 3 per 5 minutes.
func NewMemoryLimiter(limit int, window time.Duration, opts ...LimiterOption) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	l := &MemoryLimiter{
		windows:          make(map[string][]int64),
		limit:            limit,
		window:           window,
		sweepProbability: DefaultSweepProbability,
		now:              time.Now,
		random:           rand.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow never returns an error.
func (l *MemoryLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	now := l.now().UnixMilli()
	cutoff := now - l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	attempts := prune(l.windows[clientKey], cutoff)
	allowed := len(attempts) < l.limit
	if allowed {
		attempts = append(attempts, now)
	}
	if len(attempts) == 0 {
		delete(l.windows, clientKey)
	} else {
		l.windows[clientKey] = attempts
	}

	if l.sweepProbability > 0 && l.random() < l.sweepProbability {
		l.sweep(cutoff)
	}
	return allowed, nil
}

// Tracked reports how many clients currently hold a window.
func (l *MemoryLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweep must be called with mu held.
func (l *MemoryLimiter) sweep(cutoff int64) {
	for key, attempts := range l.windows {
		attempts = prune(attempts, cutoff)
		if len(attempts) == 0 {
			delete(l.windows, key)
			continue
		}
		l.windows[key] = attempts
	}
}

// prune drops attempts at or before cutoff. attempts is ascending.
func prune(attempts []int64, cutoff int64) []int64 {
	idx := sort.Search(len(attempts), func(i int) bool {
		return attempts[i] > cutoff
	})
	return attempts[idx:]
}
