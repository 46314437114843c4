package auth

import (
	"context"
	"fmt"
	"net/http"
)

// Authenticator validates request credentials.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns ErrMissingCredentials, ErrInvalidCredentials,
// ErrTokenExpired or ErrTokenMalformed, possibly wrapped.
type Authenticator interface {
	// Name identifies the scheme in logs.
	Name() string

	// Supports reports whether r carries credentials for this scheme.
	Supports(r *http.Request) bool

	// Authenticate validates the credentials in r.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// Chain tries each authenticator that supports the request, in order.
type Chain []Authenticator

// Name implements Authenticator.
func (c Chain) Name() string { return "chain" }

// Supports implements Authenticator.
func (c Chain) Supports(r *http.Request) bool {
	for _, a := range c {
		if a.Supports(r) {
			return true
		}
	}
	return false
}

// Authenticate returns the first successful identity. When no authenticator
// supports r it returns ErrMissingCredentials; otherwise the last failure.
func (c Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	err := ErrMissingCredentials
	for _, a := range c {
		if !a.Supports(r) {
			continue
		}
		id, aerr := a.Authenticate(ctx, r)
		if aerr == nil {
			return id, nil
		}
		err = fmt.Errorf("%s: %w", a.Name(), aerr)
	}
	return nil, err
}

// Middleware rejects unauthenticated requests through deny and attaches the
// identity to the request context otherwise.
func Middleware(a Authenticator, deny func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r)
			if err != nil {
				deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
