package auth

// Config enables authentication on the status and annotate routes.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// APIKeyHeader carries API keys.
	// Default: "X-API-Key"
	APIKeyHeader string `mapstructure:"api_key_header"`

	APIKeys []APIKey  `mapstructure:"api_keys"`
	JWT     JWTConfig `mapstructure:"jwt"`
}

// New builds the configured authenticators. It returns nil when
// authentication is disabled.
func New(cfg Config) (Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var chain Chain
	if len(cfg.APIKeys) > 0 {
		chain = append(chain, NewAPIKeyAuthenticator(cfg.APIKeyHeader, cfg.APIKeys))
	}
	if cfg.JWT.Secret != "" {
		chain = append(chain, NewJWTAuthenticator(cfg.JWT))
	}
	if len(chain) == 0 {
		return nil, ErrNoAuthenticators
	}
	return chain, nil
}
