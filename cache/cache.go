package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/logger"
	"github.com/kbukum/workloadops/observability"
	"github.com/kbukum/workloadops/redis"
	"github.com/kbukum/workloadops/workload"
)

// Entry is the stored form of a cached workload state.
type Entry struct {
	Key       string         `json:"key"`
	Value     workload.State `json:"value"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache operation names used in logs and metrics.
const (
	opGet        = "get"
	opPut        = "put"
	opInvalidate = "invalidate"
)

// StateCache is a best-effort cache of workload states keyed by identity token.
//
// Store failures never reach the caller: Get degrades to a miss and
// Put/Invalidate to no-ops, each logged at warn and counted.
type StateCache struct {
	store   *redis.TypedStore[Entry]
	ttl     time.Duration
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures a StateCache.
type Option func(*StateCache)

// WithMetrics records lookups and absorbed errors on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *StateCache) { c.metrics = m }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *StateCache) { c.now = now }
}

// New creates a StateCache on client.
func New(client *redis.Client, cfg Config, log *logger.Logger, opts ...Option) (*StateCache, error) {
	if client == nil {
		return nil, fmt.Errorf("cache: redis client is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cache config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &StateCache{
		store: redis.NewTypedStore[Entry](client, cfg.KeyPrefix),
		ttl:   cfg.ttl(),
		log:   log.WithComponent("cache"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached state for key. Missing, expired and unreadable
// entries are all misses.
func (c *StateCache) Get(ctx context.Context, key string) (workload.State, bool) {
	entry, err := c.store.Load(ctx, key)
	if err != nil {
		c.absorb(ctx, opGet, key, err)
		c.metrics.RecordCacheLookup(ctx, false)
		return workload.State{}, false
	}
	if entry == nil || entry.Expired(c.now()) {
		c.metrics.RecordCacheLookup(ctx, false)
		return workload.State{}, false
	}

	c.metrics.RecordCacheLookup(ctx, true)
	return entry.Value.Clone(), true
}

// Put stores state under key for ttl, or the default TTL when ttl <= 0.
// Concurrent writers race; the last one wins.
func (c *StateCache) Put(ctx context.Context, key string, state workload.State, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	entry := &Entry{
		Key:       key,
		Value:     state.Clone(),
		ExpiresAt: c.now().Add(ttl),
	}
	if err := c.store.Save(ctx, key, entry, ttl); err != nil {
		c.absorb(ctx, opPut, key, err)
	}
}

// Invalidate removes key. Removing a missing key is not an error. A store
// failure is logged and counted like any other, and also returned as
// CACHE_UNAVAILABLE because the old entry may still be served.
func (c *StateCache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return c.absorb(ctx, opInvalidate, key, err)
	}
	return nil
}

func (c *StateCache) absorb(ctx context.Context, op, key string, err error) *errors.AppError {
	appErr := errors.CacheUnavailable(err).WithDetail("cache_op", op)
	c.log.WithContext(ctx).Warn("state cache unavailable", logger.Fields(
		logger.FieldOperation, op,
		logger.FieldKey, key,
		logger.FieldCode, string(appErr.Code),
		logger.FieldError, appErr.Error(),
	))
	c.metrics.RecordCacheError(ctx, op)
	return appErr
}
