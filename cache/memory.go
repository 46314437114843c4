package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Cache with a TTL and an insertion-ordered size
// bound.
type Memory[T any] struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is the oldest insertion
}

type entry[T any] struct {
	key        string
	value      T
	insertedAt time.Time
}

// Option configures a Memory cache.
type Option func(*memoryOptions)

type memoryOptions struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewMemory creates an empty cache.
func NewMemory[T any](config Config, opts ...Option) *Memory[T] {
	o := memoryOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Memory[T]{
		config:  config.withDefaults(),
		now:     o.now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Config returns the effective configuration.
func (c *Memory[T]) Config() Config {
	return c.config
}

// Get returns the value for key. An expired entry is removed and reported
// as a miss.
func (c *Memory[T]) Get(key string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[T])
	if c.expired(e, c.now()) {
		c.removeLocked(el)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. Storing a new key into a full cache first
// evicts the earliest inserted entry. Storing an existing key replaces its
// value and insertion time without changing its eviction position.
func (c *Memory[T]) Set(key string, value T) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[T])
		e.value = value
		e.insertedAt = now
		return nil
	}

	if c.order.Len() >= c.config.MaxEntries {
		c.removeLocked(c.order.Front())
	}
	c.entries[key] = c.order.PushBack(&entry[T]{key: key, value: value, insertedAt: now})
	return nil
}

// Invalidate removes key if present.
func (c *Memory[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Clear removes every entry.
func (c *Memory[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	c.order.Init()
}

// Len returns the number of stored entries, expired or not.
func (c *Memory[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Sweep removes expired entries and returns how many were removed.
func (c *Memory[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.expired(el.Value.(*entry[T]), now) {
			c.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

// Run sweeps expired entries every SweepInterval until ctx is done.
func (c *Memory[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Memory[T]) expired(e *entry[T], now time.Time) bool {
	return now.Sub(e.insertedAt) > c.config.TTL
}

func (c *Memory[T]) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry[T])
	delete(c.entries, e.key)
}

var _ Cache[[]byte] = (*Memory[[]byte])(nil)
