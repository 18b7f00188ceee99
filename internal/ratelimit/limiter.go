package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config describes the admission policy for one endpoint.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Result reports the outcome of an admission check.
// Remaining and ResetAt reflect the more restrictive of the checked identity
// axes: smaller remaining, later reset.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// SlidingWindowLimiter is an in-memory sliding-window-log rate limiter keyed by
// (endpoint, identity). Each key keeps the individual request timestamps inside
// the trailing window, which avoids the boundary bursts of fixed buckets.
//
// The limiter is intentionally not durable: a restart resets all counters. It
// defends against abuse, not billing correctness.
type SlidingWindowLimiter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	presets   map[string]Config
	maxWindow time.Duration
	now       func() time.Time
}

// Option configures a SlidingWindowLimiter.
type Option func(*SlidingWindowLimiter)

// WithClock overrides the limiter's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindowLimiter) {
		l.now = now
	}
}

// New creates a limiter with a fixed endpoint->Config preset table. Endpoints
// without a preset are never limited.
func New(presets map[string]Config, opts ...Option) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		hits:    make(map[string][]time.Time),
		presets: make(map[string]Config, len(presets)),
		now:     time.Now,
	}
	for name, cfg := range presets {
		l.presets[name] = cfg
		if cfg.Window > l.maxWindow {
			l.maxWindow = cfg.Window
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks and, when capacity exists, consumes one slot for the given
// endpoint and identity. A denied call consumes nothing.
func (l *SlidingWindowLimiter) Allow(endpoint, identity string) Result {
	cfg, limited := l.presets[endpoint]
	if !limited || identity == "" {
		return Result{Allowed: true, Remaining: cfg.MaxRequests}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := endpoint + "|" + identity
	l.prune(key, now, cfg.Window)
	if len(l.hits[key]) >= cfg.MaxRequests {
		return l.result(key, now, cfg, false)
	}
	l.hits[key] = append(l.hits[key], now)
	return l.result(key, now, cfg, true)
}

// AllowBoth checks two identity axes for the same endpoint: the client network
// address and the authenticated account id. The call is admitted only if both
// windows have capacity; slots are consumed on both axes or on neither. An
// empty axis is ignored.
func (l *SlidingWindowLimiter) AllowBoth(endpoint, clientAddr, accountID string) Result {
	cfg, limited := l.presets[endpoint]
	if !limited {
		return Result{Allowed: true, Remaining: cfg.MaxRequests}
	}
	if clientAddr == "" {
		return l.Allow(endpoint, accountID)
	}
	if accountID == "" {
		return l.Allow(endpoint, clientAddr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	addrKey := endpoint + "|" + clientAddr
	acctKey := endpoint + "|" + accountID
	l.prune(addrKey, now, cfg.Window)
	l.prune(acctKey, now, cfg.Window)

	allowed := len(l.hits[addrKey]) < cfg.MaxRequests && len(l.hits[acctKey]) < cfg.MaxRequests
	if allowed {
		l.hits[addrKey] = append(l.hits[addrKey], now)
		l.hits[acctKey] = append(l.hits[acctKey], now)
	}
	return combine(l.result(addrKey, now, cfg, allowed), l.result(acctKey, now, cfg, allowed))
}

// prune drops timestamps that have aged out of the window. Caller holds l.mu.
func (l *SlidingWindowLimiter) prune(key string, now time.Time, window time.Duration) {
	ts := l.hits[key]
	cut := 0
	for cut < len(ts) && !ts[cut].After(now.Add(-window)) {
		cut++
	}
	if cut == 0 {
		return
	}
	if cut == len(ts) {
		delete(l.hits, key)
		return
	}
	l.hits[key] = append(ts[:0:0], ts[cut:]...)
}

// result builds the per-axis view for a key. Caller holds l.mu.
func (l *SlidingWindowLimiter) result(key string, now time.Time, cfg Config, allowed bool) Result {
	ts := l.hits[key]
	remaining := cfg.MaxRequests - len(ts)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now
	if len(ts) > 0 {
		resetAt = ts[0].Add(cfg.Window)
	}
	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}

// combine reports the more restrictive of two axis results.
func combine(a, b Result) Result {
	out := a
	if b.Remaining < out.Remaining {
		out.Remaining = b.Remaining
	}
	if b.ResetAt.After(out.ResetAt) {
		out.ResetAt = b.ResetAt
	}
	out.Allowed = a.Allowed && b.Allowed
	return out
}

// Sweep drops keys whose newest timestamp has aged out of the largest
// configured window, bounding memory under key churn.
func (l *SlidingWindowLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.maxWindow)
	for key, ts := range l.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (l *SlidingWindowLimiter) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
				if logger != nil {
					logger.Debug("Rate limiter sweep completed", slog.Int("tracked_keys", l.keyCount()))
				}
			}
		}
	}()
}

func (l *SlidingWindowLimiter) keyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
