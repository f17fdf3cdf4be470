package cache

import (
	"context"
	"time"

	"finwise/internal/core"
	"finwise/internal/log"
)

// RecordCache caches the record sets of each user, keyed by user and record
// kind. A re-fetch replaces the whole set for that key.
type RecordCache struct {
	records    *Loader[core.DecodeResult]
	categories *Loader[[]core.Category]
	goals      *Loader[[]core.SavingsGoal]
	logger     *log.Logger
}

func NewRecordCache(maxSize int, ttl time.Duration, logger *log.Logger) *RecordCache {
	if logger == nil {
		logger = log.Discard()
	}
	return &RecordCache{
		records:    NewLoader[core.DecodeResult](maxSize, ttl),
		categories: NewLoader[[]core.Category](maxSize, ttl),
		goals:      NewLoader[[]core.SavingsGoal](maxSize, ttl),
		logger:     logger.WithComponent(log.ComponentCache),
	}
}

func key(user, kind string) string {
	return user + "|" + kind
}

// Records returns the cached records of kind for user, fetching on a miss.
// The returned slices are shared and must not be modified.
func (c *RecordCache) Records(ctx context.Context, user string, kind core.Kind, fetch func(context.Context) (core.DecodeResult, error)) (core.DecodeResult, error) {
	res, hit, err := c.records.Load(ctx, key(user, kind.String()), fetch)
	if err == nil {
		c.logger.DebugContext(ctx, "Record set served", log.FieldUser, user, log.FieldKind, kind, "hit", hit)
	}
	return res, err
}

func (c *RecordCache) Categories(ctx context.Context, user string, fetch func(context.Context) ([]core.Category, error)) ([]core.Category, error) {
	v, _, err := c.categories.Load(ctx, key(user, "category"), fetch)
	return v, err
}

func (c *RecordCache) Goals(ctx context.Context, user string, fetch func(context.Context) ([]core.SavingsGoal, error)) ([]core.SavingsGoal, error) {
	v, _, err := c.goals.Load(ctx, key(user, "goal"), fetch)
	return v, err
}

// Invalidate drops the record set of one kind for user.
func (c *RecordCache) Invalidate(user string, kind core.Kind) {
	c.records.Forget(key(user, kind.String()))
}

// InvalidateGoals drops the cached savings goals of user.
func (c *RecordCache) InvalidateGoals(user string) {
	c.goals.Forget(key(user, "goal"))
}

// InvalidateUser drops every cached set belonging to user.
func (c *RecordCache) InvalidateUser(user string) {
	n := c.records.ForgetPrefix(user+"|") + c.categories.ForgetPrefix(user+"|") + c.goals.ForgetPrefix(user+"|")
	c.logger.Debug("User cache invalidated", log.FieldUser, user, log.FieldCount, n)
}

// CleanExpired implements Cleaner.
func (c *RecordCache) CleanExpired() int {
	return c.records.CleanExpired() + c.categories.CleanExpired() + c.goals.CleanExpired()
}

// Stats reports the record set counters.
func (c *RecordCache) Stats() Stats {
	return c.records.Stats()
}
