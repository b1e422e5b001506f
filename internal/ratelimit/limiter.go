// Package ratelimit implements a concurrent dual-horizon sliding-window
// rate limiter keyed by API key identity. Each identity tracks accepted
// request timestamps over a 60-second and a 3600-second lookback; a
// request is admitted only when both horizons have headroom. Window state
// lives in memory, so a process restart resets all quotas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	MinuteHorizon = time.Minute
	HourHorizon   = time.Hour
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Decision reports the outcome of one admission attempt. Remaining counts
// are post-acceptance when Allowed, post-expiry/pre-acceptance otherwise.
type Decision struct {
	Allowed         bool
	LimitMinute     int
	LimitHour       int
	RemainingMinute int
	RemainingHour   int
	MinuteExceeded  bool
	HourExceeded    bool
}

// window is an ordered log of accepted request timestamps within one
// horizon. Entries older than the horizon are logically expired and are
// physically dropped on the next prune.
type window struct {
	stamps []time.Time
}

func (w *window) prune(cutoff time.Time) {
	keep := 0
	for keep < len(w.stamps) && !w.stamps[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[keep:]...)
	}
}

func (w *window) record(now time.Time) {
	w.stamps = append(w.stamps, now)
}

func (w *window) count() int { return len(w.stamps) }

// entry holds both windows for a single identity. entry.mu serializes
// check-and-record for that identity only; unrelated identities never
// contend on it. dead is set under mu when a sweep retires the entry:
// a caller that resolved the entry before the sweep must discard it and
// re-resolve, or its recorded quota would be invisible to later calls.
type entry struct {
	mu     sync.Mutex
	dead   bool
	minute window
	hour   window
}

// Limiter is safe for concurrent use by many requests, including
// simultaneous requests for the same identity.
type Limiter struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   Clock
	logger  *zap.Logger
}

type Option func(*Limiter)

// WithClock substitutes the time source, for tests.
func WithClock(clock Clock) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

func NewLimiter(logger *zap.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		clock:   systemClock{},
		logger:  logger.Named("RateLimiter"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) entryFor(keyID string) *entry {
	l.mu.RLock()
	e, ok := l.entries[keyID]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[keyID]; ok {
		return e
	}
	e = &entry{}
	l.entries[keyID] = e
	return e
}

// Acquire checks both horizons for the identity and, when both have
// headroom, records the current instant in each. Check and record happen
// under the identity's lock, so no two concurrent callers can consume the
// same final unit of quota. A sweep may retire the resolved entry before
// the lock is taken; the loop re-resolves until it holds a live one.
func (l *Limiter) Acquire(keyID string, limitMinute, limitHour int) Decision {
	for {
		e := l.entryFor(keyID)
		if d, ok := l.tryAcquire(e, limitMinute, limitHour); ok {
			return d
		}
	}
}

// tryAcquire runs one admission attempt against e. Returns ok=false when
// e was retired by a sweep after the caller resolved it.
func (l *Limiter) tryAcquire(e *entry, limitMinute, limitHour int) (Decision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return Decision{}, false
	}

	now := l.clock.Now()
	e.minute.prune(now.Add(-MinuteHorizon))
	e.hour.prune(now.Add(-HourHorizon))

	usedMinute := e.minute.count()
	usedHour := e.hour.count()

	decision := Decision{
		LimitMinute:    limitMinute,
		LimitHour:      limitHour,
		MinuteExceeded: usedMinute >= limitMinute,
		HourExceeded:   usedHour >= limitHour,
	}

	if decision.MinuteExceeded || decision.HourExceeded {
		decision.RemainingMinute = remaining(limitMinute, usedMinute)
		decision.RemainingHour = remaining(limitHour, usedHour)
		return decision, true
	}

	e.minute.record(now)
	e.hour.record(now)

	decision.Allowed = true
	decision.RemainingMinute = remaining(limitMinute, usedMinute+1)
	decision.RemainingHour = remaining(limitHour, usedHour+1)
	return decision, true
}

// PeekRemaining reports the expiry-aware remaining quota for one horizon
// without consuming any.
func (l *Limiter) PeekRemaining(keyID string, horizon time.Duration, limit int) int {
	l.mu.RLock()
	e, ok := l.entries[keyID]
	l.mu.RUnlock()
	if !ok {
		return limit
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Entries are retired only once both windows are empty, so a dead
	// entry holds no quota.
	if e.dead {
		return limit
	}

	now := l.clock.Now()
	cutoff := now.Add(-horizon)

	var w *window
	if horizon <= MinuteHorizon {
		w = &e.minute
	} else {
		w = &e.hour
	}

	used := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			used++
		}
	}
	return remaining(limit, used)
}

// Sweep drops identities whose windows have fully expired, bounding
// memory. It holds the registry write lock only while deleting, and each
// identity's own lock while inspecting it, so in-flight acquisitions for
// other identities are unaffected.
func (l *Limiter) Sweep() {
	now := l.clock.Now()

	l.mu.RLock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.RUnlock()

	removed := 0
	for _, k := range keys {
		l.mu.Lock()
		e, ok := l.entries[k]
		if !ok {
			l.mu.Unlock()
			continue
		}
		e.mu.Lock()
		e.minute.prune(now.Add(-MinuteHorizon))
		e.hour.prune(now.Add(-HourHorizon))
		empty := e.minute.count() == 0 && e.hour.count() == 0
		if empty {
			e.dead = true
			delete(l.entries, k)
			removed++
		}
		e.mu.Unlock()
		l.mu.Unlock()
	}

	if removed > 0 {
		l.logger.Debug("Swept expired rate limit windows", zap.Int("removed", removed))
	}
}

// Run sweeps on the given interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("Rate limiter sweep loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Rate limiter sweep loop stopped")
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// tracked reports whether the identity currently has window state. Used
// by sweep tests.
func (l *Limiter) tracked(keyID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[keyID]
	return ok
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}
