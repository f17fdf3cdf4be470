package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader is a read-through cache. Concurrent misses for the same key share a
// single call to the fetch function; errors are never cached.
type Loader[T any] struct {
	lru   *LRUCache[T]
	group singleflight.Group
	// generation is bumped on every invalidation; a fetch that started
	// before it must not repopulate the cache.
	generation atomic.Uint64
}

func NewLoader[T any](maxSize int, ttl time.Duration) *Loader[T] {
	return &Loader[T]{lru: NewLRUCache[T](maxSize, ttl)}
}

// Load returns the cached value for key or calls fetch to fill it. The shared
// fetch is detached from the cancellation of the caller that started it so
// one abandoned request cannot fail the others waiting on it.
func (l *Loader[T]) Load(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := l.lru.Get(key); ok {
		return v, true, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		gen := l.generation.Load()
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		if l.generation.Load() == gen {
			l.lru.Set(key, v)
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	}
}

// Forget drops key and any in-flight fetch for it.
func (l *Loader[T]) Forget(key string) {
	l.generation.Add(1)
	l.group.Forget(key)
	l.lru.Delete(key)
}

// ForgetPrefix drops every cached key starting with prefix.
func (l *Loader[T]) ForgetPrefix(prefix string) int {
	l.generation.Add(1)
	return l.lru.DeletePrefix(prefix)
}

func (l *Loader[T]) CleanExpired() int {
	return l.lru.CleanExpired()
}

func (l *Loader[T]) Stats() Stats {
	return l.lru.Stats()
}
