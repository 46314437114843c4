package cache

import "context"

// LoadFunc computes a value on a cache miss. It reports whether the value
// may be stored.
type LoadFunc[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// Loader wraps computations with a read-through cache lookup.
type Loader[T any] struct {
	cache Cache[T]
	keyer Keyer
}

// NewLoader creates a loader. A nil keyer uses DefaultKeyer.
func NewLoader[T any](cache Cache[T], keyer Keyer) *Loader[T] {
	if keyer == nil {
		keyer = NewDefaultKeyer()
	}
	return &Loader[T]{cache: cache, keyer: keyer}
}

// Load returns the cached value for (scope, input) or runs load on a miss.
// The bool result reports a cache hit. Errors are never cached, and a key
// that cannot be derived bypasses the cache.
//
// The value is the one the cache holds, so a T with reference fields must
// be copied before it is modified.
func (l *Loader[T]) Load(ctx context.Context, scope string, input any, load LoadFunc[T]) (T, bool, error) {
	key, err := l.keyer.Key(scope, input)
	if err != nil {
		value, _, err := load(ctx)
		return value, false, err
	}

	if cached, ok := l.cache.Get(key); ok {
		return cached, true, nil
	}

	value, cacheable, err := load(ctx)
	if err != nil {
		return value, false, err
	}
	if cacheable {
		_ = l.cache.Set(key, value)
	}
	return value, false, nil
}

// Invalidate removes the entry for (scope, input).
func (l *Loader[T]) Invalidate(scope string, input any) error {
	key, err := l.keyer.Key(scope, input)
	if err != nil {
		return err
	}
	l.cache.Invalidate(key)
	return nil
}
