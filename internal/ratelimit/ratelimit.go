package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultLimit is the number of requests a subject may make per window.
	DefaultLimit = 10
	// DefaultWindow anchors a subject's quota to its first request; the
	// window resets one full day after that request, not at a rolling
	// 24h-from-now boundary.
	DefaultWindow = 24 * time.Hour

	defaultSweepEvery = time.Hour
)

// Limiter tracks fixed-window request counters per subject key
// (client identifier + ":" + route). All methods are safe for concurrent
// use; the increment-and-compare in Allow is atomic per subject.
type Limiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	logger *zap.Logger

	sweepEvery time.Duration

	mu      sync.RWMutex
	entries map[string]*counter
}

type counter struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// WithWindow overrides the counting window.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithSweepInterval overrides how often the background janitor runs.
func WithSweepInterval(every time.Duration) Option {
	return func(l *Limiter) {
		l.sweepEvery = every
	}
}

// New constructs a Limiter allowing limit requests per subject per window.
// A non-positive limit falls back to DefaultLimit.
func New(limit int, logger *zap.Logger, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Limiter{
		limit:      limit,
		window:     DefaultWindow,
		clock:      func() time.Time { return time.Now().UTC() },
		logger:     logger,
		sweepEvery: defaultSweepEvery,
		entries:    make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured per-window request limit.
func (l *Limiter) Limit() int { return l.limit }

// Allow records one request for subject and reports whether it is within the
// limit. An elapsed window restarts at the time of the request that finds it
// elapsed.
func (l *Limiter) Allow(subject string) bool {
	now := l.clock()
	c := l.counterFor(subject, now)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.Before(c.resetAt) {
		c.count = 1
		c.resetAt = now.Add(l.window)
		return c.count <= l.limit
	}

	c.count++
	return c.count <= l.limit
}

// Remaining reports how many requests subject has left in its current
// window. Unknown subjects and elapsed windows report the full limit.
func (l *Limiter) Remaining(subject string) int {
	now := l.clock()

	l.mu.RLock()
	c, ok := l.entries[subject]
	l.mu.RUnlock()
	if !ok {
		return l.limit
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.Before(c.resetAt) {
		return l.limit
	}
	if c.count >= l.limit {
		return 0
	}
	return l.limit - c.count
}

// ResetTime reports when subject's current window ends. Unknown subjects and
// elapsed windows report one full window from now.
func (l *Limiter) ResetTime(subject string) time.Time {
	now := l.clock()

	l.mu.RLock()
	c, ok := l.entries[subject]
	l.mu.RUnlock()
	if !ok {
		return now.Add(l.window)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.Before(c.resetAt) {
		return now.Add(l.window)
	}
	return c.resetAt
}

func (l *Limiter) counterFor(subject string, now time.Time) *counter {
	l.mu.RLock()
	c, ok := l.entries[subject]
	l.mu.RUnlock()
	if ok {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok = l.entries[subject]; ok {
		return c
	}
	c = &counter{resetAt: now.Add(l.window)}
	l.entries[subject] = c
	return c
}

// Sweep removes counters whose window ended more than one full extra window
// ago, bounding table growth. It returns the number of evicted entries.
func (l *Limiter) Sweep() int {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for subject, c := range l.entries {
		c.mu.Lock()
		stale := now.Sub(c.resetAt) > l.window
		c.mu.Unlock()
		if stale {
			delete(l.entries, subject)
			evicted++
		}
	}
	return evicted
}

// StartJanitor launches the periodic eviction goroutine. It stops when ctx is
// cancelled. A faulting sweep cycle is logged and swallowed; it never takes
// down the limiter.
func (l *Limiter) StartJanitor(ctx context.Context) {
	if l.sweepEvery <= 0 {
		return
	}

	ticker := time.NewTicker(l.sweepEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.safeSweep()
			}
		}
	}()
}

func (l *Limiter) safeSweep() {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("rate limit sweep failed", zap.Any("error", rec))
		}
	}()

	if evicted := l.Sweep(); evicted > 0 {
		l.logger.Debug("rate limit counters evicted", zap.Int("count", evicted))
	}
}

// size is a test hook reporting the number of tracked subjects.
func (l *Limiter) size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
