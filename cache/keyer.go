package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer derives cache keys from a scope and a request value.
//
// Contract:
// - Determinism: equal inputs yield equal keys, whatever the map order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(scope string, input any) (string, error)
}

// DefaultKeyer keys on the SHA-256 of the input's JSON encoding, so maps
// with the same entries and structs with the same exported fields collide.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key returns "cache:<scope>:<16 hex chars>". encoding/json writes map keys
// in sorted order, which makes the encoding canonical.
func (k *DefaultKeyer) Key(scope string, input any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("cache: encode key input: %w", err)
	}
	sum := sha256.Sum256(raw)
	return "cache:" + scope + ":" + hex.EncodeToString(sum[:8]), nil
}
