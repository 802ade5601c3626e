// Package ratelimit bounds how often one client may use the public search.
//
// Limits are fixed windows counted in the shared transient store, so every
// server process sharing the settings database shares the same budget. A
// refused request is never delayed or retried.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DefaultLimit is the number of requests allowed per window.
	DefaultLimit = 5

	// DefaultWindow is the length of one counting window.
	DefaultWindow = 10 * time.Second

	keyPrefix = "signpost_search_rl_"
)

// Counter is an expiring counter store.
type Counter interface {
	Increment(ctx context.Context, name string, ttl time.Duration) (int64, error)
}

// Limiter counts requests per client.
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
}

// New returns a limiter allowing limit requests per window. Non-positive
// values fall back to the defaults.
func New(counter Counter, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{counter: counter, limit: int64(limit), window: window}
}

// Key derives the counter name for a client. The raw address is never stored.
func Key(client string) string {
	sum := sha256.Sum256([]byte(client))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// Allow records one request from client and reports whether it is within
// the limit.
func (l *Limiter) Allow(ctx context.Context, client string) (bool, error) {
	n, err := l.counter.Increment(ctx, Key(client), l.window)
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return n <= l.limit, nil
}

// Limit returns the configured quota.
func (l *Limiter) Limit() int { return int(l.limit) }

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }
