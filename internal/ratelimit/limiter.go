// Package ratelimit implements fixed-window request counters keyed by
// scope and client bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

type BucketKind string

const (
	BucketIP  BucketKind = "ip"
	BucketKey BucketKind = "key"
)

// Config sets per-window limits. A limit of zero disables limiting for
// that scope and bucket kind.
type Config struct {
	Window   time.Duration
	ReadIP   int
	ReadKey  int
	WriteIP  int
	WriteKey int
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   int64
	ResetIn   int64
}

type key struct {
	scope  Scope
	kind   BucketKind
	bucket string
}

type counter struct {
	windowStart int64
	count       int
}

const maxEntries = 100000

type Limiter struct {
	cfg     Config
	windowS int64

	mu      sync.Mutex
	entries map[key]counter
}

func New(cfg Config) *Limiter {
	if cfg.Window < time.Second {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		windowS: int64(cfg.Window / time.Second),
		entries: make(map[key]counter, 1024),
	}
}

// Take counts one request for bucket at now.
func (l *Limiter) Take(now time.Time, scope Scope, kind BucketKind, bucket string) Result {
	unixNow := now.Unix()
	limit := l.limit(scope, kind)
	if limit <= 0 {
		return Result{Allowed: true, ResetAt: unixNow}
	}

	windowStart := unixNow / l.windowS * l.windowS
	resetAt := windowStart + l.windowS
	k := key{scope: scope, kind: kind, bucket: bucket}

	l.mu.Lock()
	entry, ok := l.entries[k]
	if !ok || entry.windowStart != windowStart {
		entry = counter{windowStart: windowStart}
	}
	allowed := entry.count < limit
	if allowed {
		entry.count++
	}
	l.entries[k] = entry
	if len(l.entries) > maxEntries {
		l.sweepLocked(windowStart)
	}
	l.mu.Unlock()

	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-entry.count, 0),
		ResetAt:   resetAt,
		ResetIn:   max(resetAt-unixNow, 0),
	}
}

// Run drops expired counters every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = l.cfg.Window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// Sweep removes counters whose window ended before now.
func (l *Limiter) Sweep(now time.Time) int {
	windowStart := now.Unix() / l.windowS * l.windowS
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(windowStart)
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) sweepLocked(currentWindow int64) int {
	removed := 0
	for k, v := range l.entries {
		if v.windowStart < currentWindow {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *Limiter) limit(scope Scope, kind BucketKind) int {
	switch scope {
	case ScopeRead:
		if kind == BucketKey {
			return l.cfg.ReadKey
		}
		return l.cfg.ReadIP
	case ScopeWrite:
		if kind == BucketKey {
			return l.cfg.WriteKey
		}
		return l.cfg.WriteIP
	default:
		return 0
	}
}
