// Package cache provides a TTL-bounded in-memory result cache with
// deterministic key derivation.
//
// Memory evicts in insertion order: once MaxEntries is reached, storing a
// new key drops the entry that was inserted earliest. Reads never extend an
// entry's lifetime and never change its eviction position.
//
// Loader wraps a computation with a read-through lookup, caching only the
// results the computation marks as cacheable.
package cache
