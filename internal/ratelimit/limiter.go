// Package ratelimit implements a sliding-window limiter shared across
// workers through a valkey sorted set, with an in-process store for tests
// and single-node deployments.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store is the backing window store. Implementations keep one sorted set
// of timestamped members per identifier.
type Store interface {
	// Trim drops members older than cutoff, then returns the member count.
	TrimAndCount(ctx context.Context, identifier string, cutoff time.Time) (int64, error)

	// Add records one acquisition at ts and refreshes the key's expiry.
	Add(ctx context.Context, identifier string, ts time.Time, keyTTL time.Duration) error

	// Oldest returns the timestamp of the oldest member, or zero time when
	// the window is empty.
	Oldest(ctx context.Context, identifier string) (time.Time, error)

	// Reset clears the window for identifier.
	Reset(ctx context.Context, identifier string) error
}

// Status is the remaining-budget report for one identifier.
type Status struct {
	Remaining int           `json:"remaining"`
	Limit     int           `json:"limit"`
	ResetIn   time.Duration `json:"reset_in"`
}

// Limiter enforces a per-identifier sliding window. It fails OPEN: when
// the store is unreachable, requests are allowed, because throttling an
// engine is less important than serving the search.
type Limiter struct {
	store Store

	// Store I/O never holds up a search longer than this.
	opTimeout time.Duration
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, opTimeout: time.Second}
}

// Acquire reports whether a request for identifier may proceed under
// limit-per-period, recording it when allowed.
func (l *Limiter) Acquire(ctx context.Context, identifier string, limit int, period time.Duration) bool {
	if limit <= 0 || period <= 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	now := time.Now()
	count, err := l.store.TrimAndCount(ctx, identifier, now.Add(-period))
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing request", "identifier", identifier, "error", err)
		return true
	}
	if count >= int64(limit) {
		return false
	}
	if err := l.store.Add(ctx, identifier, now, period+time.Second); err != nil {
		slog.Warn("rate limiter record failed, allowing request", "identifier", identifier, "error", err)
	}
	return true
}

// Remaining reports the current budget without consuming any of it. Store
// failures read as a full budget.
func (l *Limiter) Remaining(ctx context.Context, identifier string, limit int, period time.Duration) Status {
	status := Status{Remaining: limit, Limit: limit, ResetIn: period}
	if limit <= 0 || period <= 0 {
		return status
	}
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	now := time.Now()
	count, err := l.store.TrimAndCount(ctx, identifier, now.Add(-period))
	if err != nil {
		return status
	}
	status.Remaining = limit - int(count)
	if status.Remaining < 0 {
		status.Remaining = 0
	}

	if oldest, err := l.store.Oldest(ctx, identifier); err == nil && !oldest.IsZero() {
		if resetIn := oldest.Add(period).Sub(now); resetIn > 0 {
			status.ResetIn = resetIn
		} else {
			status.ResetIn = 0
		}
	}
	return status
}

// Reset clears the window for identifier.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()
	return l.store.Reset(ctx, identifier)
}
