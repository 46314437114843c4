package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	// Secret is the HS256 signing key. Empty disables the scheme.
	Secret string `mapstructure:"secret"`

	// Issuer, when set, must match the iss claim.
	Issuer string `mapstructure:"issuer"`

	// Audience, when set, must appear in the aud claim.
	Audience string `mapstructure:"audience"`

	// PrincipalClaim names the claim holding the principal.
	// Default: "sub"
	PrincipalClaim string `mapstructure:"principal_claim"`
}

// JWTAuthenticator validates "Authorization: Bearer <token>" headers.
type JWTAuthenticator struct {
	cfg    JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates an HS256 bearer token authenticator.
func NewJWTAuthenticator(cfg JWTConfig) *JWTAuthenticator {
	if cfg.PrincipalClaim == "" {
		cfg.PrincipalClaim = "sub"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTAuthenticator{cfg: cfg, parser: jwt.NewParser(opts...)}
}

// Name implements Authenticator.
func (a *JWTAuthenticator) Name() string { return string(MethodJWT) }

// Supports implements Authenticator.
func (a *JWTAuthenticator) Supports(r *http.Request) bool {
	_, ok := bearerToken(r)
	return ok
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(a.cfg.Secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case err != nil:
		return nil, errors.Join(ErrInvalidCredentials, err)
	}

	id := &Identity{Method: MethodJWT, Claims: map[string]any(claims)}
	id.Principal, _ = claims[a.cfg.PrincipalClaim].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
