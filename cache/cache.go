package cache

import (
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
)

// Config configures a Memory cache.
type Config struct {
	// TTL is how long an entry stays readable after it is stored.
	// Default: 5 minutes
	TTL time.Duration `mapstructure:"ttl"`

	// MaxEntries bounds the number of stored entries.
	// Default: 100
	MaxEntries int `mapstructure:"max_entries"`

	// SweepInterval is how often Run removes expired entries.
	// Default: 1 minute
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:           5 * time.Minute,
		MaxEntries:    100,
		SweepInterval: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = def.MaxEntries
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

// Cache is a keyed store of values of type T.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (zero, false) on miss.
type Cache[T any] interface {
	// Get retrieves a value. Returns (zero, false) on miss or expiry.
	Get(key string) (T, bool)

	// Set stores a value.
	Set(key string, value T) error

	// Invalidate removes a value. Idempotent.
	Invalidate(key string)

	// Clear removes every value.
	Clear()
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
