package ratelimit

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Config stores TokenBucketLimiter settings.
type Config struct {
	Rate       float64       // tokens per second
	Burst      int           // bucket capacity
	TTL        time.Duration // idle buckets older than TTL are dropped, 0 keeps them
	MaxBuckets int           // 0 means unbounded
}

// TokenBucketLimiter is a per-key token bucket limiter.
type TokenBucketLimiter struct {
	cfg     Config
	clock   Clock
	buckets *xsync.MapOf[string, *bucket]

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a limiter with explicit config and clock.
func NewTokenBucketLimiter(clock Clock, cfg Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBuckets < 0 {
		cfg.MaxBuckets = 0
	}
	return &TokenBucketLimiter{
		cfg:     cfg,
		clock:   clock,
		buckets: xsync.NewMapOf[string, *bucket](),
	}
}

// NewTokenBucketPerWindow allows limit requests per window with a burst of limit.
func NewTokenBucketPerWindow(clock Clock, limit int, window, ttl time.Duration, maxBuckets int) *TokenBucketLimiter {
	if window <= 0 {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	return NewTokenBucketLimiter(clock, Config{
		Rate:       float64(limit) / window.Seconds(),
		Burst:      limit,
		TTL:        ttl,
		MaxBuckets: maxBuckets,
	})
}

// Allow reports whether key may proceed and takes a token if so.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()
	l.maybeCleanup(now)

	b, ok := l.buckets.Load(key)
	if !ok {
		if l.cfg.MaxBuckets > 0 && l.buckets.Size() >= l.cfg.MaxBuckets {
			return false
		}
		b, _ = l.buckets.LoadOrCompute(key, func() *bucket {
			return &bucket{tokens: float64(l.cfg.Burst), last: now, lastSeen: now}
		})
	}
	return b.take(now, l.cfg.Rate, float64(l.cfg.Burst))
}

// Buckets returns the number of tracked keys.
func (l *TokenBucketLimiter) Buckets() int {
	return l.buckets.Size()
}

func (b *bucket) take(now time.Time, rate, burst float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dt := now.Sub(b.last); dt > 0 {
		b.tokens = min(burst, b.tokens+dt.Seconds()*rate)
		b.last = now
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *TokenBucketLimiter) maybeCleanup(now time.Time) {
	if l.cfg.TTL <= 0 {
		return
	}

	interval := max(time.Minute, l.cfg.TTL/2)

	l.cleanupMu.Lock()
	if !l.lastCleanup.IsZero() && now.Sub(l.lastCleanup) < interval {
		l.cleanupMu.Unlock()
		return
	}
	l.lastCleanup = now
	l.cleanupMu.Unlock()

	l.buckets.Range(func(key string, b *bucket) bool {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen) > l.cfg.TTL
		b.mu.Unlock()
		if idle {
			l.buckets.Delete(key)
		}
		return true
	})
}
