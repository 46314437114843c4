// Package config loads depguard configuration from a YAML file and
// DEPGUARD_* environment variables.
//
// Keys are nested with dots in the file and underscores in the environment,
// so limits.completion.burst_limit can be overridden with
// DEPGUARD_LIMITS_COMPLETION_BURST_LIMIT. Every key has a default; a
// missing file is not an error when no path is given.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/depguard/auth"
	"github.com/jonwraymond/depguard/cache"
	"github.com/jonwraymond/depguard/fallback"
	"github.com/jonwraymond/depguard/httpdep"
	"github.com/jonwraymond/depguard/lifecycle"
	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/resilience"
	"github.com/jonwraymond/depguard/secret"
	"github.com/jonwraymond/depguard/service"
	"github.com/jonwraymond/depguard/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEPGUARD"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete depguard configuration.
type Config struct {
	Server       ServerConfig                 `mapstructure:"server"`
	Observe      observe.Config               `mapstructure:"observe"`
	Telemetry    telemetry.Config             `mapstructure:"telemetry"`
	Limits       map[string]resilience.Limits `mapstructure:"limits"`
	Cache        cache.Config                 `mapstructure:"cache"`
	Lifecycle    lifecycle.Config             `mapstructure:"lifecycle"`
	Chain        ChainConfig                  `mapstructure:"chain"`
	Dependencies map[string]httpdep.Config    `mapstructure:"dependencies"`
	Heuristics   HeuristicsConfig             `mapstructure:"heuristics"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Auth guards the status and annotate routes. Probes stay open.
	Auth auth.Config `mapstructure:"auth"`
}

// ChainConfig selects which dependencies back the fallback tiers.
type ChainConfig struct {
	// Primary names the primary tier's dependency.
	Primary string `mapstructure:"primary"`

	// Secondary names the secondary tier's dependency. Empty disables the
	// tier.
	Secondary string `mapstructure:"secondary"`

	// TierTimeout bounds each dependency tier call. Zero means no deadline.
	TierTimeout time.Duration `mapstructure:"tier_timeout"`

	// CacheResults enables result caching in the chain.
	CacheResults bool `mapstructure:"cache_results"`
}

// HeuristicsConfig configures the static tier.
type HeuristicsConfig struct {
	// Patterns replaces the built-in pattern table when non-empty.
	Patterns []fallback.Pattern `mapstructure:"patterns"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	limits := make(map[string]resilience.Limits)
	for id, l := range resilience.DefaultLimits() {
		limits[id.Key()] = l
	}
	return &Config{
		Server: ServerConfig{
			Addr:            ":8090",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Auth:            auth.Config{APIKeyHeader: "X-API-Key"},
		},
		Observe: observe.Config{
			ServiceName: "depguard",
			Version:     "dev",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info", Format: "json"},
		},
		Telemetry: telemetry.DefaultConfig(),
		Limits:    limits,
		Cache:     cache.DefaultConfig(),
		Lifecycle: lifecycle.DefaultConfig(),
		Chain: ChainConfig{
			Primary:      service.Completion.String(),
			Secondary:    service.VectorSearch.String(),
			CacheResults: true,
		},
		Dependencies: map[string]httpdep.Config{},
	}
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("server.auth.enabled", def.Server.Auth.Enabled)
	v.SetDefault("server.auth.api_key_header", def.Server.Auth.APIKeyHeader)
	v.SetDefault("server.auth.jwt.secret", "")
	v.SetDefault("server.auth.jwt.issuer", "")
	v.SetDefault("server.auth.jwt.audience", "")

	v.SetDefault("observe.service_name", def.Observe.ServiceName)
	v.SetDefault("observe.version", def.Observe.Version)
	v.SetDefault("observe.tracing.enabled", def.Observe.Tracing.Enabled)
	v.SetDefault("observe.tracing.exporter", def.Observe.Tracing.Exporter)
	v.SetDefault("observe.tracing.sample_pct", def.Observe.Tracing.SamplePct)
	v.SetDefault("observe.metrics.enabled", def.Observe.Metrics.Enabled)
	v.SetDefault("observe.metrics.exporter", def.Observe.Metrics.Exporter)
	v.SetDefault("observe.logging.enabled", def.Observe.Logging.Enabled)
	v.SetDefault("observe.logging.level", def.Observe.Logging.Level)
	v.SetDefault("observe.logging.format", def.Observe.Logging.Format)

	v.SetDefault("telemetry.event_capacity", def.Telemetry.EventCapacity)
	v.SetDefault("telemetry.health_window", def.Telemetry.HealthWindow)
	v.SetDefault("telemetry.max_failure_rate", def.Telemetry.MaxFailureRate)
	v.SetDefault("telemetry.max_latency", def.Telemetry.MaxLatency)
	v.SetDefault("telemetry.slow_latency", def.Telemetry.SlowLatency)
	v.SetDefault("telemetry.recent_events", def.Telemetry.RecentEvents)

	for name, l := range def.Limits {
		v.SetDefault("limits."+name+".max_requests_per_minute", l.MaxRequestsPerMinute)
		v.SetDefault("limits."+name+".burst_limit", l.BurstLimit)
		v.SetDefault("limits."+name+".cooldown", l.Cooldown)
	}

	v.SetDefault("cache.ttl", def.Cache.TTL)
	v.SetDefault("cache.max_entries", def.Cache.MaxEntries)
	v.SetDefault("cache.sweep_interval", def.Cache.SweepInterval)

	v.SetDefault("lifecycle.sweep_interval", def.Lifecycle.SweepInterval)
	v.SetDefault("lifecycle.max_retries", def.Lifecycle.MaxRetries)
	v.SetDefault("lifecycle.base_delay", def.Lifecycle.BaseDelay)
	v.SetDefault("lifecycle.max_delay", def.Lifecycle.MaxDelay)

	v.SetDefault("chain.primary", def.Chain.Primary)
	v.SetDefault("chain.secondary", def.Chain.Secondary)
	v.SetDefault("chain.tier_timeout", def.Chain.TierTimeout)
	v.SetDefault("chain.cache_results", def.Chain.CacheResults)
}

// Load reads configuration from path, or from depguard.yaml in the working
// directory or /etc/depguard when path is empty, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("depguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/depguard/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.Dependencies == nil {
		cfg.Dependencies = map[string]httpdep.Config{}
	}
	if err := cfg.resolveSecrets(context.Background(), secret.DefaultResolver()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveSecrets expands environment variables and secret references in
// dependency endpoints and headers, API keys and the JWT secret.
func (c *Config) resolveSecrets(ctx context.Context, r *secret.Resolver) error {
	for i, k := range c.Server.Auth.APIKeys {
		if k.Key == "" {
			continue
		}
		key, err := r.ResolveValue(ctx, k.Key)
		if err != nil {
			return fmt.Errorf("config: server.auth.api_keys[%d]: %w", i, err)
		}
		c.Server.Auth.APIKeys[i].Key = key
	}
	if c.Server.Auth.JWT.Secret != "" {
		jwtSecret, err := r.ResolveValue(ctx, c.Server.Auth.JWT.Secret)
		if err != nil {
			return fmt.Errorf("config: server.auth.jwt.secret: %w", err)
		}
		c.Server.Auth.JWT.Secret = jwtSecret
	}

	for name, dep := range c.Dependencies {
		endpoint, err := r.ResolveValue(ctx, dep.Endpoint)
		if err != nil {
			return fmt.Errorf("config: dependencies.%s.endpoint: %w", name, err)
		}
		headers, err := r.ResolveMap(ctx, dep.Headers)
		if err != nil {
			return fmt.Errorf("config: dependencies.%s.headers: %w", name, err)
		}
		dep.Endpoint, dep.Headers = endpoint, headers
		c.Dependencies[name] = dep
	}
	return nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if _, err := auth.New(c.Server.Auth); err != nil {
		add("server.auth: %w", err)
	}
	for i, k := range c.Server.Auth.APIKeys {
		if (k.Key == "") == (k.Hash == "") {
			add("server.auth.api_keys[%d]: exactly one of key and hash is required", i)
		}
	}
	if err := c.Observe.Validate(); err != nil {
		add("observe: %w", err)
	}

	for name, l := range c.Limits {
		if _, err := service.Parse(name); err != nil {
			add("limits: %w", err)
			continue
		}
		if l.MaxRequestsPerMinute <= 0 || l.BurstLimit <= 0 || l.Cooldown <= 0 {
			add("limits.%s: all limits must be positive", name)
		}
	}

	if c.Cache.TTL <= 0 {
		add("cache.ttl must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		add("cache.max_entries must be positive")
	}
	if c.Telemetry.MaxFailureRate <= 0 || c.Telemetry.MaxFailureRate > 1 {
		add("telemetry.max_failure_rate must be in (0, 1]")
	}
	if c.Lifecycle.MaxRetries <= 0 {
		add("lifecycle.max_retries must be positive")
	}

	primary, err := service.Parse(c.Chain.Primary)
	if err != nil {
		add("chain.primary: %w", err)
	}
	if c.Chain.Secondary != "" {
		secondary, err := service.Parse(c.Chain.Secondary)
		switch {
		case err != nil:
			add("chain.secondary: %w", err)
		case secondary == primary:
			add("chain.secondary must differ from chain.primary")
		}
	}
	if c.Chain.TierTimeout < 0 {
		add("chain.tier_timeout must not be negative")
	}

	for name, dep := range c.Dependencies {
		if _, err := service.Parse(name); err != nil {
			add("dependencies: %w", err)
			continue
		}
		if err := dep.Validate(); err != nil {
			add("dependencies.%s: %w", name, err)
		}
	}

	if _, err := fallback.NewPatternTable(c.Heuristics.Patterns); err != nil {
		add("heuristics: %w", err)
	}

	return errors.Join(errs...)
}

// ServiceLimits returns the limits keyed by service.
func (c *Config) ServiceLimits() map[service.ID]resilience.Limits {
	out := make(map[service.ID]resilience.Limits, len(c.Limits))
	for name, l := range c.Limits {
		if id, err := service.Parse(name); err == nil {
			out[id] = l
		}
	}
	return out
}

// ServiceDependencies returns the HTTP dependency settings keyed by service.
func (c *Config) ServiceDependencies() map[service.ID]httpdep.Config {
	out := make(map[service.ID]httpdep.Config, len(c.Dependencies))
	for name, dep := range c.Dependencies {
		if id, err := service.Parse(name); err == nil {
			out[id] = dep
		}
	}
	return out
}

// Patterns returns the configured heuristic patterns, or the built-in ones
// when none are configured.
func (c *Config) Patterns() []fallback.Pattern {
	if len(c.Heuristics.Patterns) == 0 {
		return fallback.DefaultPatterns()
	}
	return c.Heuristics.Patterns
}
