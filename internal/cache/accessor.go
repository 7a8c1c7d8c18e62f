package cache

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Fetcher performs the cold remote read for a key
type Fetcher[T any] func(ctx context.Context, key string) (T, error)

// FetchObserver is told about every remote fetch the Accessor performs
type FetchObserver interface {
	FetchStarted(key string)
	FetchFinished(key string, err error)
}

// FetchError is returned by Read when the remote fetch fails.
// No entry is created, so the next Read retries.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %q: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Accessor is the single source of truth for the last known server state.
// Read fetches lazily and caches forever; Write and Peek never touch the
// network.
type Accessor[T any] struct {
	cache    *Cache[T]
	fetch    Fetcher[T]
	group    singleflight.Group
	observer FetchObserver
	logger   *slog.Logger
}

// AccessorOption configures an Accessor
type AccessorOption[T any] func(*Accessor[T])

// WithFetchObserver registers an observer for remote fetches
func WithFetchObserver[T any](o FetchObserver) AccessorOption[T] {
	return func(a *Accessor[T]) {
		a.observer = o
	}
}

// WithLogger sets the logger used by the Accessor
func WithLogger[T any](l *slog.Logger) AccessorOption[T] {
	return func(a *Accessor[T]) {
		a.logger = l
	}
}

// NewAccessor creates an Accessor reading through c with fetch
func NewAccessor[T any](c *Cache[T], fetch Fetcher[T], opts ...AccessorOption[T]) *Accessor[T] {
	a := &Accessor[T]{
		cache:  c,
		fetch:  fetch,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Read returns the cached value for key, fetching it first if nothing is
// cached. Concurrent Reads of the same uncached key share one fetch.
func (a *Accessor[T]) Read(ctx context.Context, key string) (T, error) {
	if v, ok := a.cache.Get(key); ok {
		return v, nil
	}

	v, err, shared := a.group.Do(key, func() (any, error) {
		// A Read that lost the race to a finished fetch finds the value here
		if v, ok := a.cache.Get(key); ok {
			return v, nil
		}

		if a.observer != nil {
			a.observer.FetchStarted(key)
		}
		a.logger.Debug("fetching", "key", key)

		v, err := a.fetch(ctx, key)
		if a.observer != nil {
			a.observer.FetchFinished(key, err)
		}
		if err != nil {
			return nil, err
		}

		// A Write that landed while the fetch was in flight is newer
		return a.cache.setIfAbsent(key, v), nil
	})
	if err != nil {
		a.logger.Warn("fetch failed", "key", key, "error", err, "shared", shared)
		var zero T
		return zero, &FetchError{Key: key, Err: err}
	}

	return v.(T), nil
}

// Write replaces the cached value for key. No remote call is made.
func (a *Accessor[T]) Write(key string, v T) {
	a.cache.Set(key, v)
}

// Peek returns the cached value for key without fetching
func (a *Accessor[T]) Peek(key string) (T, bool) {
	return a.cache.Get(key)
}

// Replace writes v and returns the value it replaced, in one atomic step
func (a *Accessor[T]) Replace(key string, v T) (T, bool) {
	return a.cache.Swap(key, v)
}

// Forget drops the cached value for key
func (a *Accessor[T]) Forget(key string) {
	a.cache.Delete(key)
}
