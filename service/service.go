// Package service names the external dependencies that depguard mediates.
//
// The set is closed: every component keys its per-dependency state by ID and
// iterates All() in the same fixed order.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknown is returned by Parse for names outside the closed set.
var ErrUnknown = errors.New("service: unknown service")

// ID identifies a logical dependency.
type ID int

const (
	// Completion is the completion/generation dependency.
	Completion ID = iota
	// VectorSearch is the similarity-search dependency.
	VectorSearch
	// Documentation is the documentation-pattern dependency.
	Documentation
)

var all = []ID{Completion, VectorSearch, Documentation}

// All returns every service in declaration order.
func All() []ID {
	ids := make([]ID, len(all))
	copy(ids, all)
	return ids
}

// String returns the canonical name of the service.
func (id ID) String() string {
	switch id {
	case Completion:
		return "completion"
	case VectorSearch:
		return "vectorSearch"
	case Documentation:
		return "documentation"
	default:
		return "unknown"
	}
}

// Key returns the lower-case name used in configuration files and URLs.
func (id ID) Key() string {
	return strings.ToLower(id.String())
}

// Valid reports whether id belongs to the closed set.
func (id ID) Valid() bool {
	return id >= Completion && id <= Documentation
}

// Parse resolves a service name. Matching is case-insensitive and accepts
// both "vectorSearch" and "vector_search" spellings.
func Parse(name string) (ID, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
	for _, id := range all {
		if id.Key() == normalized {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(id))
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
