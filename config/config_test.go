package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/depguard/auth"
	"github.com/jonwraymond/depguard/fallback"
	"github.com/jonwraymond/depguard/httpdep"
	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/secret"
	"github.com/jonwraymond/depguard/service"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depguard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":8090" {
		t.Errorf("Server.Addr = %q, want :8090", cfg.Server.Addr)
	}
	if cfg.Cache.TTL != 5*time.Minute || cfg.Cache.MaxEntries != 100 {
		t.Errorf("Cache = %+v, want 5m/100", cfg.Cache)
	}
	if cfg.Lifecycle.SweepInterval != 30*time.Second || cfg.Lifecycle.MaxRetries != 3 {
		t.Errorf("Lifecycle = %+v, want 30s/3", cfg.Lifecycle)
	}
	if cfg.Telemetry.EventCapacity != 1000 {
		t.Errorf("Telemetry.EventCapacity = %d, want 1000", cfg.Telemetry.EventCapacity)
	}

	limits := cfg.ServiceLimits()
	tests := []struct {
		id       service.ID
		perMin   int
		burst    int
		cooldown time.Duration
	}{
		{service.Completion, 60, 10, 60 * time.Second},
		{service.VectorSearch, 100, 20, 30 * time.Second},
		{service.Documentation, 120, 30, 15 * time.Second},
	}
	for _, tt := range tests {
		l := limits[tt.id]
		if l.MaxRequestsPerMinute != tt.perMin || l.BurstLimit != tt.burst || l.Cooldown != tt.cooldown {
			t.Errorf("limits[%s] = %+v, want %d/%d/%v", tt.id, l, tt.perMin, tt.burst, tt.cooldown)
		}
	}

	if len(cfg.Patterns()) == 0 {
		t.Error("Patterns() is empty, want built-in patterns")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9999"
limits:
  completion:
    max_requests_per_minute: 5
    burst_limit: 2
    cooldown: 10s
cache:
  ttl: 1m
  max_entries: 10
chain:
  primary: documentation
  secondary: ""
  tier_timeout: 2s
dependencies:
  completion:
    endpoint: http://localhost:8081
    result_path: data.annotations
heuristics:
  patterns:
    - name: fixme
      expr: FIXME
      payload:
        severity: warning
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want :9999", cfg.Server.Addr)
	}
	l := cfg.ServiceLimits()[service.Completion]
	if l.MaxRequestsPerMinute != 5 || l.BurstLimit != 2 || l.Cooldown != 10*time.Second {
		t.Errorf("completion limits = %+v, want 5/2/10s", l)
	}
	if got := cfg.ServiceLimits()[service.VectorSearch].MaxRequestsPerMinute; got != 100 {
		t.Errorf("vectorSearch limit = %d, want default 100", got)
	}
	if cfg.Cache.TTL != time.Minute || cfg.Cache.MaxEntries != 10 {
		t.Errorf("Cache = %+v, want 1m/10", cfg.Cache)
	}
	if cfg.Chain.Primary != "documentation" || cfg.Chain.Secondary != "" || cfg.Chain.TierTimeout != 2*time.Second {
		t.Errorf("Chain = %+v", cfg.Chain)
	}

	dep, ok := cfg.ServiceDependencies()[service.Completion]
	if !ok {
		t.Fatal("completion dependency missing")
	}
	if dep.Endpoint != "http://localhost:8081" || dep.ResultPath != "data.annotations" {
		t.Errorf("completion dependency = %+v", dep)
	}

	patterns := cfg.Patterns()
	if len(patterns) != 1 || patterns[0].Name != "fixme" || patterns[0].Payload["severity"] != "warning" {
		t.Errorf("Patterns() = %+v", patterns)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEPGUARD_SERVER_ADDR", ":7777")
	t.Setenv("DEPGUARD_LIMITS_COMPLETION_BURST_LIMIT", "3")
	t.Setenv("DEPGUARD_LIFECYCLE_MAX_RETRIES", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("Server.Addr = %q, want :7777", cfg.Server.Addr)
	}
	if got := cfg.ServiceLimits()[service.Completion].BurstLimit; got != 3 {
		t.Errorf("completion BurstLimit = %d, want 3", got)
	}
	if cfg.Lifecycle.MaxRetries != 5 {
		t.Errorf("Lifecycle.MaxRetries = %d, want 5", cfg.Lifecycle.MaxRetries)
	}
}

func TestLoad_ResolvesDependencySecrets(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("COMPLETION_HOST", "completion.internal")

	path := writeConfig(t, `
dependencies:
  completion:
    endpoint: http://${COMPLETION_HOST}:8081
    headers:
      authorization: Bearer secretref:file:`+tokenFile+`
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	dep := cfg.ServiceDependencies()[service.Completion]
	if dep.Endpoint != "http://completion.internal:8081" {
		t.Errorf("Endpoint = %q, want expanded host", dep.Endpoint)
	}
	if got := dep.Headers["authorization"]; got != "Bearer s3cret" {
		t.Errorf("Headers[authorization] = %q, want %q", got, "Bearer s3cret")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
dependencies:
  completion:
    endpoint: http://localhost:8081
    headers:
      authorization: Bearer secretref:env:DEPGUARD_TEST_NO_SUCH_TOKEN
`)
	if _, err := Load(path); !errors.Is(err, secret.ErrMissingEnv) {
		t.Errorf("Load() error = %v, want ErrMissingEnv", err)
	}
}

func TestLoad_Auth(t *testing.T) {
	t.Setenv("DEPGUARD_TEST_JWT_SECRET", "hs256-secret")
	path := writeConfig(t, `
server:
  auth:
    enabled: true
    api_keys:
      - id: ci
        key: plain-key
      - id: ops
        hash: 5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8
    jwt:
      secret: secretref:env:DEPGUARD_TEST_JWT_SECRET
      issuer: depguard
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	a := cfg.Server.Auth
	if !a.Enabled || len(a.APIKeys) != 2 || a.APIKeyHeader != "X-API-Key" {
		t.Errorf("Server.Auth = %+v", a)
	}
	if a.JWT.Secret != "hs256-secret" || a.JWT.Issuer != "depguard" {
		t.Errorf("Server.Auth.JWT = %+v, want resolved secret", a.JWT)
	}
}

func TestLoad_AuthEnabledWithoutSchemes(t *testing.T) {
	path := writeConfig(t, `
server:
  auth:
    enabled: true
`)
	if _, err := Load(path); !errors.Is(err, auth.ErrNoAuthenticators) {
		t.Errorf("Load() error = %v, want ErrNoAuthenticators", err)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
chain:
  primary: translation
`)
	_, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, service.ErrUnknown) {
		t.Errorf("Load() error = %v, want service.ErrUnknown", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"no service name", func(c *Config) { c.Observe.ServiceName = "" }},
		{"unknown limit service", func(c *Config) { c.Limits["search"] = c.Limits["completion"] }},
		{"zero burst", func(c *Config) {
			l := c.Limits["completion"]
			l.BurstLimit = 0
			c.Limits["completion"] = l
		}},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"failure rate above one", func(c *Config) { c.Telemetry.MaxFailureRate = 1.5 }},
		{"zero retries", func(c *Config) { c.Lifecycle.MaxRetries = 0 }},
		{"same tiers", func(c *Config) { c.Chain.Secondary = "completion" }},
		{"negative tier timeout", func(c *Config) { c.Chain.TierTimeout = -time.Second }},
		{"bad dependency endpoint", func(c *Config) {
			c.Dependencies["completion"] = httpdep.Config{Endpoint: "ftp://example.com"}
		}},
		{"unknown dependency", func(c *Config) {
			c.Dependencies["search"] = httpdep.Config{Endpoint: "http://localhost:1"}
		}},
		{"bad pattern", func(c *Config) {
			c.Heuristics.Patterns = []fallback.Pattern{{Name: "bad", Expr: "("}}
		}},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateWrapsObserveErrors(t *testing.T) {
	cfg := Default()
	cfg.Observe.Metrics.Exporter = "graphite"
	if err := cfg.Validate(); !errors.Is(err, observe.ErrInvalidMetricsExporter) {
		t.Errorf("Validate() error = %v, want ErrInvalidMetricsExporter", err)
	}
}
