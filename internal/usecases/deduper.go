package usecases

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"lightning-paywall.backend/pkg/logger"
	"lightning-paywall.backend/pkg/redis"
)

const (
	dedupKeyPrefix = "payment-dedup:"
	// dedupLockTTL bounds how long an uncompleted begin-lock can block
	// further attempts (crash-recovery path).
	dedupLockTTL = 30 * time.Second
	// dedupDoneTTL is how long a completed confirmation keeps suppressing
	// redeliveries of the same hash.
	dedupDoneTTL = 24 * time.Hour
)

// Deduper is the advisory per-hash single-flight lock guarding settlement
// confirmation. TryBegin without a matching Complete expires after the lock
// TTL so a redelivered event can retry.
type Deduper interface {
	// TryBegin returns true when the caller owns the confirmation for hash.
	TryBegin(ctx context.Context, hash string) bool
	// Complete upgrades the lock to a long-lived done marker. Call only
	// after a successful confirmation.
	Complete(ctx context.Context, hash string)
}

// RedisDeduper implements the dedup lock on redis SET NX with TTLs.
type RedisDeduper struct{}

func NewRedisDeduper() *RedisDeduper {
	return &RedisDeduper{}
}

func (d *RedisDeduper) TryBegin(ctx context.Context, hash string) bool {
	ok, err := redis.SetNX(ctx, dedupKeyPrefix+hash, "processing", dedupLockTTL)
	if err != nil {
		// Fail open: a duplicate confirmation is idempotent at the store,
		// a lost one is not.
		logger.Warn(ctx, "Dedup lock unavailable, proceeding", zap.Error(err))
		return true
	}
	return ok
}

func (d *RedisDeduper) Complete(ctx context.Context, hash string) {
	if err := redis.Set(ctx, dedupKeyPrefix+hash, "done", dedupDoneTTL); err != nil {
		logger.Warn(ctx, "Could not persist dedup done marker", zap.Error(err))
	}
}

// MemoryDeduper is the in-process fallback used when redis is not
// configured, and in tests. Mirrors the redis TTL semantics.
type MemoryDeduper struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (d *MemoryDeduper) TryBegin(_ context.Context, hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	// Evict expired entries so the redis-less fallback doesn't grow a map
	// entry per hash forever.
	for h, expiry := range d.entries {
		if !now.Before(expiry) {
			delete(d.entries, h)
		}
	}
	if _, ok := d.entries[hash]; ok {
		return false
	}
	d.entries[hash] = now.Add(dedupLockTTL)
	return true
}

func (d *MemoryDeduper) Complete(_ context.Context, hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[hash] = d.now().Add(dedupDoneTTL)
}
