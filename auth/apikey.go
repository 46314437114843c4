package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKey is one accepted key. Exactly one of Key and Hash is set; Key is
// hashed when the authenticator is built.
type APIKey struct {
	ID        string `mapstructure:"id"`
	Principal string `mapstructure:"principal"`
	Key       string `mapstructure:"key"`
	Hash      string `mapstructure:"hash"`
}

// APIKeyAuthenticator validates a static key carried in a header.
type APIKeyAuthenticator struct {
	header string
	keys   []APIKey
}

// NewAPIKeyAuthenticator accepts keys in header, "X-API-Key" by default.
func NewAPIKeyAuthenticator(header string, keys []APIKey) *APIKeyAuthenticator {
	if header == "" {
		header = "X-API-Key"
	}
	stored := make([]APIKey, 0, len(keys))
	for _, k := range keys {
		if k.Hash == "" {
			k.Hash = HashAPIKey(k.Key)
		}
		k.Hash = strings.ToLower(k.Hash)
		k.Key = ""
		stored = append(stored, k)
	}
	return &APIKeyAuthenticator{header: header, keys: stored}
}

// Name implements Authenticator.
func (a *APIKeyAuthenticator) Name() string { return string(MethodAPIKey) }

// Supports implements Authenticator.
func (a *APIKeyAuthenticator) Supports(r *http.Request) bool {
	return r.Header.Get(a.header) != ""
}

// Authenticate compares the presented key's hash against every stored hash
// in constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	presented := strings.TrimSpace(r.Header.Get(a.header))
	if presented == "" {
		return nil, ErrMissingCredentials
	}
	hash := []byte(HashAPIKey(presented))

	var match *APIKey
	for i := range a.keys {
		if subtle.ConstantTimeCompare(hash, []byte(a.keys[i].Hash)) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return nil, ErrInvalidCredentials
	}

	principal := match.Principal
	if principal == "" {
		principal = match.ID
	}
	return &Identity{
		Principal: principal,
		Method:    MethodAPIKey,
		Claims:    map[string]any{"key_id": match.ID},
	}, nil
}

// HashAPIKey returns the hex SHA-256 of key, the form stored in config.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
