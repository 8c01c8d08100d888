// Package ratelimit implements per-identity token bucket admission control.
//
// Buckets live in a sharded map so unrelated identities never contend on the
// same lock. Each bucket carries its own mutex; check-and-decrement happens
// under it, and the idle sweep takes the same mutex before evicting, marking
// the bucket removed so a caller holding a stale pointer retries the lookup.
package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/common/metrics"

	"github.com/cespare/xxhash/v2"
)

// AnonymousIdentity is the shared key for callers without a principal.
const AnonymousIdentity = "anonymous"

const (
	DefaultCapacity        = 60
	DefaultRefillPeriod    = time.Minute
	DefaultCleanupInterval = 5 * time.Minute
	DefaultIdleTTL         = 30 * time.Minute
	DefaultShards          = 32
)

type Config struct {
	Enabled bool
	// Capacity tokens are added back every RefillPeriod, continuously.
	Capacity        int64
	RefillPeriod    time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Shards          int
}

// Result is the verdict of one admission check.
type Result struct {
	Allowed              bool
	RemainingTokens      int64
	NanosToWaitForRefill int64
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
	removed    bool
}

type shard struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

type Limiter struct {
	cfg    Config
	rate   float64 // tokens per nanosecond
	shards []*shard
	live   atomic.Int64
	now    func() time.Time
	logger logger.Logger
}

// New builds a limiter. Non-positive settings fall back to defaults so a
// partial configuration never blocks request handling.
func New(cfg Config, log logger.Logger) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.RefillPeriod <= 0 {
		cfg.RefillPeriod = DefaultRefillPeriod
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}

	shards := make([]*shard, cfg.Shards)
	for i := range shards {
		shards[i] = &shard{buckets: make(map[string]*bucket)}
	}

	return &Limiter{
		cfg:    cfg,
		rate:   float64(cfg.Capacity) / float64(cfg.RefillPeriod.Nanoseconds()),
		shards: shards,
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "ratelimit"}),
	}
}

// NormalizeIdentity case-folds and trims id. Blank ids collapse to AnonymousIdentity.
func NormalizeIdentity(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return AnonymousIdentity
	}
	return id
}

func (l *Limiter) Enabled() bool { return l.cfg.Enabled }

func (l *Limiter) Capacity() int64 { return l.cfg.Capacity }

// TryConsume removes one token from identity's bucket, creating it full on
// first use. When disabled every call is allowed and no bucket is allocated.
func (l *Limiter) TryConsume(identity string) Result {
	if !l.cfg.Enabled {
		return Result{Allowed: true, RemainingTokens: l.cfg.Capacity}
	}
	key := NormalizeIdentity(identity)

	for {
		b := l.bucketFor(key)

		b.mu.Lock()
		if b.removed {
			b.mu.Unlock()
			continue
		}
		now := l.now()
		l.refill(b, now)
		b.lastAccess = now

		var res Result
		if b.tokens >= 1 {
			b.tokens--
			res = Result{Allowed: true, RemainingTokens: int64(math.Floor(b.tokens))}
		} else {
			res = Result{NanosToWaitForRefill: int64(math.Ceil((1 - b.tokens) / l.rate))}
		}
		b.mu.Unlock()

		if res.Allowed {
			metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		} else {
			metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
		}
		return res
	}
}

// refill adds tokens for the time elapsed since the last refill. Caller holds b.mu.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(float64(l.cfg.Capacity), b.tokens+float64(elapsed.Nanoseconds())*l.rate)
	b.lastRefill = now
}

func (l *Limiter) shardFor(key string) *shard {
	return l.shards[xxhash.Sum64String(key)%uint64(len(l.shards))]
}

func (l *Limiter) bucketFor(key string) *bucket {
	s := l.shardFor(key)

	s.mu.RLock()
	b, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buckets[key]; ok {
		return b
	}
	now := l.now()
	b = &bucket{
		tokens:     float64(l.cfg.Capacity),
		lastRefill: now,
		lastAccess: now,
	}
	s.buckets[key] = b
	l.live.Add(1)
	metrics.RateLimitBuckets.Inc()
	return b
}

// Cleanup evicts buckets whose last access is older than the idle TTL as of
// now and returns how many were removed.
func (l *Limiter) Cleanup(now time.Time) int {
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			b.mu.Lock()
			if now.Sub(b.lastAccess) > l.cfg.IdleTTL {
				b.removed = true
				delete(s.buckets, key)
				removed++
			}
			b.mu.Unlock()
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		metrics.RateLimitBucketsEvicted.Add(float64(removed))
		l.live.Add(-int64(removed))
		metrics.RateLimitBuckets.Sub(float64(removed))
	}
	return removed
}

// StartCleanup runs Cleanup every CleanupInterval until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context) {
	if !l.cfg.Enabled {
		return
	}
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(l.now()); n > 0 {
				l.logger.Debug("evicted idle buckets", map[string]interface{}{
					"evicted":   n,
					"remaining": l.BucketCount(),
				})
			}
		}
	}
}

// BucketCount returns the number of live buckets.
func (l *Limiter) BucketCount() int {
	n := 0
	for _, s := range l.shards {
		s.mu.RLock()
		n += len(s.buckets)
		s.mu.RUnlock()
	}
	return n
}

// Clear drops every bucket.
func (l *Limiter) Clear() {
	cleared := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			b.mu.Lock()
			b.removed = true
			b.mu.Unlock()
			delete(s.buckets, key)
			cleared++
		}
		s.mu.Unlock()
	}
	l.live.Add(-int64(cleared))
	metrics.RateLimitBuckets.Sub(float64(cleared))
}
