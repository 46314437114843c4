package httpdep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jonwraymond/depguard/fallback"
	"github.com/jonwraymond/depguard/observe"
	"github.com/jonwraymond/depguard/resilience"
	"github.com/jonwraymond/depguard/service"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Config configures one HTTP dependency.
type Config struct {
	// Endpoint is the base URL, e.g. "http://localhost:8081".
	Endpoint string `mapstructure:"endpoint"`

	// InitPath is requested with GET by Init.
	// Default: "/healthz"
	InitPath string `mapstructure:"init_path"`

	// AnnotatePath receives annotation requests with POST.
	// Default: "/annotate"
	AnnotatePath string `mapstructure:"annotate_path"`

	// ResultPath is the gjson path of the annotation array in the response.
	// Default: "annotations"
	ResultPath string `mapstructure:"result_path"`

	// Timeout bounds each HTTP request.
	// Default: 10 seconds
	Timeout time.Duration `mapstructure:"timeout"`

	// InitAttempts is how many times Init tries before giving up. Only
	// transport errors and 429/5xx responses are retried.
	// Default: 2
	InitAttempts int `mapstructure:"init_attempts"`

	// Headers are added to every request, typically credentials. Values
	// may reference secrets; config.Load resolves them.
	Headers map[string]string `mapstructure:"headers"`
}

// DefaultConfig returns defaults for every field but Endpoint.
func DefaultConfig() Config {
	return Config{
		InitPath:     "/healthz",
		AnnotatePath: "/annotate",
		ResultPath:   "annotations",
		Timeout:      10 * time.Second,
		InitAttempts: 2,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitPath == "" {
		c.InitPath = def.InitPath
	}
	if c.AnnotatePath == "" {
		c.AnnotatePath = def.AnnotatePath
	}
	if c.ResultPath == "" {
		c.ResultPath = def.ResultPath
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.InitAttempts <= 0 {
		c.InitAttempts = def.InitAttempts
	}
	return c
}

// Validate checks that Endpoint is an absolute http(s) URL.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidEndpoint)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	return nil
}

// Client is an HTTP-backed dependency.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: non-2xx responses are returned as *StatusError.
type Client struct {
	id     service.ID
	config Config
	base   string
	http   *http.Client
	retry  *resilience.Retry
	logger observe.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithService(c.id)
		}
	}
}

// New creates a client for dependency id.
func New(id service.ID, cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		id:     id,
		config: cfg,
		base:   strings.TrimRight(cfg.Endpoint, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.retry = resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: cfg.InitAttempts,
		Backoff:     resilience.Backoff{Initial: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: true},
		RetryIf:     retryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.Debug(context.Background(), "retrying init",
				observe.F("attempt", attempt),
				observe.F("error", err.Error()),
				observe.F("delay_ms", delay.Milliseconds()),
			)
		},
	})
	return c, nil
}

// Service returns the dependency this client talks to.
func (c *Client) Service() service.ID {
	return c.id
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// Init checks that the dependency answers its init path with a 2xx.
func (c *Client) Init(ctx context.Context) error {
	return c.retry.Execute(ctx, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodGet, c.config.InitPath, nil)
		return err
	})
}

// Annotate sends req to the dependency and decodes the annotations found at
// the configured result path.
func (c *Client) Annotate(ctx context.Context, req fallback.Request) ([]fallback.Annotation, error) {
	body, err := requestBody(c.id, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, c.config.AnnotatePath, body)
	if err != nil {
		return nil, err
	}
	return decodeAnnotations(resp, c.config.ResultPath)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	target := c.base + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("httpdep: create request: %w", err)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpdep: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("httpdep: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   truncate(strings.TrimSpace(string(data)), 256),
		}
	}
	return data, nil
}

func requestBody(id service.ID, req fallback.Request) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "service", id.String())
	if err != nil {
		return nil, fmt.Errorf("httpdep: encode request: %w", err)
	}
	fields := []struct {
		path  string
		value string
	}{
		{"source", req.Source},
		{"language", req.Language},
		{"path", req.Path},
	}
	for _, f := range fields {
		if f.value == "" && f.path != "source" {
			continue
		}
		if body, err = sjson.SetBytes(body, f.path, f.value); err != nil {
			return nil, fmt.Errorf("httpdep: encode request: %w", err)
		}
	}
	return body, nil
}

func decodeAnnotations(body []byte, resultPath string) ([]fallback.Annotation, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidResponse
	}

	result := gjson.GetBytes(body, resultPath)
	if !result.Exists() || !result.IsArray() {
		return nil, fmt.Errorf("%w: %q", ErrMissingResult, resultPath)
	}

	items := result.Array()
	out := make([]fallback.Annotation, 0, len(items))
	for _, item := range items {
		span := item.Get("span")
		payload, _ := item.Get("payload").Value().(map[string]any)
		if payload == nil {
			payload = map[string]any{}
		}
		out = append(out, fallback.Annotation{
			Span: fallback.Span{
				Start: int(span.Get("start").Int()),
				End:   int(span.Get("end").Int()),
				Line:  int(span.Get("line").Int()),
			},
			Payload: payload,
		})
	}
	return out, nil
}

// retryable reports whether an Init failure may succeed on another try.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Temporary()
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
