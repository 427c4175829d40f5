package prefetch

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestConfig describes one outgoing request as it moves through the
// request interceptor chain. Stages receive their own copy and return a
// replacement; a config is never mutated in place once handed to a stage.
type RequestConfig struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     any
	Cache    bool
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Clone returns a copy of the config with its own header map.
func (c *RequestConfig) Clone() *RequestConfig {
	if c == nil {
		return nil
	}
	dup := *c
	if c.Headers != nil {
		dup.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			dup.Headers[k] = v
		}
	}
	return &dup
}

// Response is the normalized result of a dispatched request. Treat it as
// immutable once built: cached responses are shared between callers, so
// response interceptors return replacements instead of mutating.
type Response struct {
	// Data is the decoded payload: the result of json.Unmarshal when the
	// content type contains application/json, otherwise the raw body as a
	// string.
	Data       any
	Body       []byte
	Status     int
	StatusText string
	Headers    http.Header
	Config     *RequestConfig
}

// RequestOptions carries per-call overrides. The zero value (or nil) keeps
// the client defaults.
type RequestOptions struct {
	Headers map[string]string
	Body    any
	// Cache overrides the per-call cache flag. Defaults to true for GET.
	// Only GET requests ever consult the cache regardless of this flag.
	Cache    *bool
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Option represents a configuration option.
type Option func(*Client)

// Config mirrors the integration options a host application passes when
// registering the request layer. Zero-valued fields keep client defaults;
// use the individual With* options to force an explicit zero.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	Headers      map[string]string
	CacheTimeout time.Duration
	RetryCount   int
	RetryDelay   time.Duration
}

// DebugConfig controls opt-in debug logging.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogRetries   bool
	LogCache     bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a debug configuration with all areas enabled
// (once Enabled is flipped) and a UUID request ID generator.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogRetries:   true,
		LogCache:     true,
		RequestIDGen: func() string { return uuid.NewString() },
	}
}
